package freelist

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// poolMachine drives a Pool through random operation sequences while a
// parallel model tracks what every live handle must resolve to.
type poolMachine struct {
	pool *Pool[session]

	order []Handle
	vals  map[Handle]int64
	dead  []Handle
	next  int64
}

func (m *poolMachine) init(t *rapid.T) {
	capacity := rapid.IntRange(1, 16).Draw(t, "capacity")
	pool, err := New[session](capacity)
	require.NoError(t, err)

	m.pool = pool
	m.vals = map[Handle]int64{}
}

func (m *poolMachine) Construct(t *rapid.T) {
	fail := rapid.Bool().Draw(t, "fail init")
	m.next++
	id := m.next

	h, err := m.pool.Construct(func(s *session) error {
		if fail {
			return fmt.Errorf("drawn failure")
		}
		s.ID = id
		return nil
	})
	switch {
	case IsExhausted(err):
		require.Equal(t, 0, m.pool.Free())
	case fail:
		require.Error(t, err)
		require.True(t, h.IsZero())
	default:
		require.NoError(t, err)
		m.order = append(m.order, h)
		m.vals[h] = id
	}
}

func (m *poolMachine) Release(t *rapid.T) {
	if len(m.order) == 0 {
		t.SkipNow()
		return
	}
	i := rapid.IntRange(0, len(m.order)-1).Draw(t, "release index")
	h := m.order[i]

	require.NoError(t, m.pool.Release(h))
	m.forget(i)
}

func (m *poolMachine) Destroy(t *rapid.T) {
	if len(m.order) == 0 {
		t.SkipNow()
		return
	}
	i := rapid.IntRange(0, len(m.order)-1).Draw(t, "destroy index")
	h := m.order[i]

	require.NoError(t, m.pool.Destroy(h))
	m.forget(i)
}

func (m *poolMachine) StaleOp(t *rapid.T) {
	if len(m.dead) == 0 {
		t.SkipNow()
		return
	}
	i := rapid.IntRange(0, len(m.dead)-1).Draw(t, "dead index")
	h := m.dead[i]

	_, err := m.pool.Get(h)
	require.True(t, IsStaleHandle(err))
	require.True(t, IsStaleHandle(m.pool.Release(h)))
	require.True(t, IsStaleHandle(m.pool.Destroy(h)))
}

func (m *poolMachine) forget(i int) {
	h := m.order[i]
	m.order = append(m.order[:i], m.order[i+1:]...)
	delete(m.vals, h)
	m.dead = append(m.dead, h)
}

// Check holds after every action: occupancy is conserved, the model and
// the pool agree on what is live, and every live handle still resolves to
// exactly the value its constructor wrote.
func (m *poolMachine) Check(t *rapid.T) {
	require.Equal(t, m.pool.Cap(), m.pool.Free()+m.pool.InUse())
	require.Equal(t, len(m.order), m.pool.InUse())

	for _, h := range m.order {
		s, err := m.pool.Get(h)
		require.NoError(t, err)
		require.Equal(t, m.vals[h], s.ID)
	}
}

func TestPool_StateMachine(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := poolMachine{}
		m.init(t)
		t.Repeat(rapid.StateMachineActions(&m))
	})
}
