package merr_test

import (
	"testing"

	stderrors "errors"

	"github.com/stretchr/testify/require"

	"github.com/fmaggi/matiria/internal/merr"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		kind merr.Kind
		code int
	}{
		{merr.FileErr, 1},
		{merr.ParseErr, 2},
		{merr.TypeErr, 3},
		{merr.ScopeErr, 4},
		{merr.EmitErr, 5},
		{merr.RuntimeErr, 6},
	}
	for _, c := range cases {
		require.Equal(t, c.code, c.kind.ExitCode())
	}
}

func TestNewFormatsMessageWithPosition(t *testing.T) {
	err := merr.New(merr.ParseErr, 3, 7, "unexpected %s", "token")
	require.EqualError(t, err, "ParseError: 3:7: unexpected token")
}

func TestWrapPreservesCauseAndKind(t *testing.T) {
	cause := stderrors.New("file not found")
	err := merr.Wrap(merr.FileErr, cause, "cannot read %s", "main.mtr")

	require.Equal(t, merr.FileErr, merr.KindOf(err))
	require.True(t, stderrors.Is(err, cause))
}

func TestWrapNilReturnsNil(t *testing.T) {
	require.NoError(t, merr.Wrap(merr.FileErr, nil, "unused"))
}

func TestKindOfDefaultsToRuntimeErrForUnrelatedErrors(t *testing.T) {
	require.Equal(t, merr.RuntimeErr, merr.KindOf(stderrors.New("plain")))
}
