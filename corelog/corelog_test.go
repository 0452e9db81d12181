package corelog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/watchcore/corelog"
)

func TestToFileRedirectsSubsequentLogs(t *testing.T) {
	s := corelog.New()
	path := filepath.Join(t.TempDir(), "out.log")

	require.NoError(t, s.ToFile(path))
	s.Logger().Info("hello", corelog.Component("test"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestDisableDiscardsLogs(t *testing.T) {
	s := corelog.New()
	path := filepath.Join(t.TempDir(), "out.log")
	require.NoError(t, s.ToFile(path))

	s.Disable()
	s.Logger().Info("should not appear")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestErrAttrOmittedWhenNil(t *testing.T) {
	attr := corelog.Err(nil)
	assert.Empty(t, attr.Key)
}
