package panicerr

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverReturnsUnderlyingError(t *testing.T) {
	want := errors.New("boom")
	err := Recover("job", func() error { return want })
	assert.Equal(t, want, err)
}

func TestRecoverReturnsNilOnSuccess(t *testing.T) {
	err := Recover("job", func() error { return nil })
	assert.NoError(t, err)
}

func TestRecoverCatchesPanic(t *testing.T) {
	err := Recover("job", func() error { panic("kaboom") })
	require := assert.New(t)
	require.Error(err)
	require.True(IsPanic(err))
	require.Contains(err.Error(), "job")
	require.Contains(err.Error(), "kaboom")
}

func TestRecoverCatchesGoexit(t *testing.T) {
	err := Recover("job", func() error {
		runtime.Goexit()
		return nil
	})
	assert.Error(t, err)
	assert.True(t, IsExit(err))
}
