package errs

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, Unknown},
		{"plain", io.EOF, Unknown},
		{"parse", E(Parse, "read head", io.ErrUnexpectedEOF), Parse},
		{"wrapped", fmt.Errorf("outer: %w", E(Timeout, "read body", io.EOF)), Timeout},
		{"route miss", E(RouteMiss, "dispatch", nil), RouteMiss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestENilCause(t *testing.T) {
	assert.NoError(t, E(Transport, "write", nil))
}

func TestErrorUnwrap(t *testing.T) {
	err := E(Transport, "write", io.ErrClosedPipe)
	require.ErrorIs(t, err, io.ErrClosedPipe)
	assert.True(t, Is(err, Transport))
	assert.False(t, Is(err, Timeout))
	assert.Contains(t, err.Error(), "write: transport error")
}

func TestErrorf(t *testing.T) {
	err := Errorf(Parse, "chunk size", "invalid hex %q", "zz")
	assert.EqualError(t, err, `chunk size: parse error: invalid hex "zz"`)
}
