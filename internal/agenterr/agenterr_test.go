package agenterr_test

import (
	"errors"
	"testing"

	"github.com/agentic/rpc-agent/internal/agenterr"
	"github.com/stretchr/testify/require"
)

func TestFatalWrapsAndUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := &agenterr.Fatal{Op: "dial", Err: inner}

	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "dial")
	require.Contains(t, err.Error(), "boom")
}

func TestConnectionUnwrap(t *testing.T) {
	inner := errors.New("reset by peer")
	err := &agenterr.Connection{Op: "read", Err: inner}
	require.True(t, errors.Is(err, inner))
}

func TestValidationHasNoInnerError(t *testing.T) {
	err := &agenterr.Validation{Reason: "missing field id"}
	require.EqualError(t, err, "validation: missing field id")
}

func TestRequestProcessingMessage(t *testing.T) {
	err := &agenterr.RequestProcessing{Reason: "worker pool exhausted"}
	require.Contains(t, err.Error(), "worker pool exhausted")
}
