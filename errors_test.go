package gloop

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIllegalStateError_Error(t *testing.T) {
	err := &IllegalStateError{Op: "PipeSource.Dispatch", Reason: "source not ready"}
	assert.Equal(t, `gloop: illegal state in PipeSource.Dispatch: source not ready`, err.Error())
}

func TestIllegalControlError_Error(t *testing.T) {
	err := &IllegalControlError{Byte: 'x'}
	assert.Equal(t, `gloop: illegal control byte 'x' on control pipe`, err.Error())
}

func TestProtocolError_Error(t *testing.T) {
	err := &ProtocolError{Reason: "yielded a non-thunk value"}
	assert.Equal(t, "gloop: fiber protocol error: yielded a non-thunk value", err.Error())
}

func TestChildError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("exec: \"nope\": executable file not found in $PATH")
	err := &ChildError{Argv: []string{"nope"}, Err: cause}

	assert.Equal(t, fmt.Sprintf("gloop: spawn %v failed: %v", []string{"nope"}, cause), err.Error())
	assert.ErrorIs(t, err, cause)

	var target *ChildError
	assert.ErrorAs(t, err, &target)
	assert.Same(t, err, target)
}

func TestSentinelErrors_DistinctAndStable(t *testing.T) {
	assert.NotErrorIs(t, ErrLoopAlreadyRunning, ErrLoopTerminated)
	assert.NotErrorIs(t, ErrLoopTerminated, ErrReentrantRun)
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", ErrLoopTerminated), ErrLoopTerminated)
}
