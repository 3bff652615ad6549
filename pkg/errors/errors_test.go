package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeValidation, "capacity must be positive")

	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, "capacity must be positive", err.Message)
	assert.Nil(t, err.Cause)
	assert.Equal(t, "validation: capacity must be positive", err.Error())
	assert.NotEmpty(t, err.Stack, "errors capture their call stack")
}

func TestNewf(t *testing.T) {
	err := Newf(ErrorTypeValidation, "capacity must be at least 1, got %d", -3)
	assert.Equal(t, "validation: capacity must be at least 1, got -3", err.Error())
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, ErrorTypeConstruction, "initializer failed")

	assert.Equal(t, ErrorTypeConstruction, err.Type)
	assert.Equal(t, "construction: initializer failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause, "the cause stays reachable through the chain")
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeInternal, "ignored"))
}

func TestWrap_PreservesStack(t *testing.T) {
	inner := New(ErrorTypeExhausted, "no free slots available")
	outer := Wrap(inner, ErrorTypeConfig, "warm-up failed")

	// Wrapping one of our errors keeps the original capture point instead
	// of recording the wrap site.
	require.NotEmpty(t, outer.Stack)
	assert.Equal(t, inner.Stack[0], outer.Stack[0])
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeStaleHandle, "handle is stale")

	assert.True(t, IsType(err, ErrorTypeStaleHandle))
	assert.False(t, IsType(err, ErrorTypeExhausted))
	assert.False(t, IsType(nil, ErrorTypeStaleHandle))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeStaleHandle))

	// IsType reports the outermost typed error: wrapping reclassifies.
	wrapped := Wrap(err, ErrorTypeInternal, "unexpected during teardown")
	assert.True(t, IsType(wrapped, ErrorTypeInternal))
	assert.False(t, IsType(wrapped, ErrorTypeStaleHandle))
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(New(ErrorTypeExhausted, "no free slots available")))

	assert.False(t, IsRecoverable(New(ErrorTypeValidation, "bad capacity")))
	assert.False(t, IsRecoverable(New(ErrorTypeStaleHandle, "stale")))
	assert.False(t, IsRecoverable(New(ErrorTypeOutOfMemory, "slab overflows int")))
	assert.False(t, IsRecoverable(nil))
	assert.False(t, IsRecoverable(fmt.Errorf("plain")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeExhausted, "no free slots available").
		WithDetail("capacity", 256).
		WithDetail("in_use", 256)

	assert.Equal(t, 256, err.Details["capacity"])
	assert.Equal(t, 256, err.Details["in_use"])
}

func TestErrorChain(t *testing.T) {
	root := stderrors.New("disk full")
	mid := Wrap(root, ErrorTypeOutOfMemory, "slab allocation failed")
	top := Wrap(mid, ErrorTypeConfig, "pool warm-up failed")

	assert.ErrorIs(t, top, root)
	assert.ErrorIs(t, top, mid)

	var typed *Error
	require.True(t, stderrors.As(top, &typed))
	assert.Equal(t, ErrorTypeConfig, typed.Type)

	msg := top.Error()
	assert.True(t, strings.HasPrefix(msg, "config: pool warm-up failed"))
	assert.Contains(t, msg, "disk full")
}
