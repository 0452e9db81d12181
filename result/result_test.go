package result_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/watchcore/result"
)

func TestResultHealthy(t *testing.T) {
	ok := result.Ok(42)
	assert.True(t, ok.Healthy())

	failed := result.Fail[int](errors.New("boom"))
	assert.False(t, failed.Healthy())
}

func TestResultCombineJoinsBothErrors(t *testing.T) {
	r := result.Fail[struct{}](errors.New("first"))
	r = r.Combine(errors.New("second"))

	require.False(t, r.Healthy())
	require.Error(t, r.Err)
	assert.NotEmpty(t, r.Err.Error())
}

func TestResultCombineWithNilIsNoop(t *testing.T) {
	r := result.Ok("value")
	r = r.Combine(nil)
	assert.True(t, r.Healthy())
}

func TestPropagateReshapesWithoutConstructingValue(t *testing.T) {
	r := result.Fail[int](errors.New("boom"))
	reshaped := result.Propagate[int, string](r)

	assert.False(t, reshaped.Healthy())
	assert.Empty(t, reshaped.Value)
}

func TestSyncErrableShortCircuitsAfterFail(t *testing.T) {
	var s result.SyncErrable
	require.True(t, s.Healthy())

	s.Fail(errors.New("first failure"))
	assert.False(t, s.Healthy())

	s.Fail(errors.New("second failure"))
	assert.Error(t, s.Err())
}
