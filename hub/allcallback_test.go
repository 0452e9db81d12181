package hub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllCallbackFiresOnceAllReport(t *testing.T) {
	var fired int
	var gotErr error
	all := newAllCallback(2, func(err error) {
		fired++
		gotErr = err
	})

	all.report(nil)
	assert.Equal(t, 0, fired, "terminal callback fired before all sub-callbacks reported")

	all.report(nil)
	require.Equal(t, 1, fired, "expected terminal callback to fire exactly once")
	assert.NoError(t, gotErr)
}

func TestAllCallbackCombinesErrors(t *testing.T) {
	var gotErr error
	all := newAllCallback(2, func(err error) { gotErr = err })

	all.report(errors.New("first"))
	all.report(errors.New("second"))

	assert.Error(t, gotErr)
}

func TestAllCallbackSingleSubCallback(t *testing.T) {
	fired := false
	all := newAllCallback(1, func(error) { fired = true })
	all.report(nil)
	assert.True(t, fired, "expected terminal callback to fire after the only sub-callback reports")
}
