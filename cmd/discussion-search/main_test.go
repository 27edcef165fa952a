package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_Version(t *testing.T) {
	assert.NoError(t, Execute("1.2.3", "discussion-search", []string{"--version"}))
}

func TestExecute_Help(t *testing.T) {
	assert.NoError(t, Execute("dev", "discussion-search", []string{"--help"}))
}

func TestExecute_ServeRequiresSecret(t *testing.T) {
	t.Setenv("DISCUSSION_SEARCH_HTTP_JWT_SECRET", "")

	err := Execute("dev", "discussion-search", []string{"serve"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt secret is required")
}

func TestExecute_RejectsUnknownObjectType(t *testing.T) {
	err := Execute("dev", "discussion-search", []string{"recreate-index", "--object-types", "post,bogus"})
	assert.Error(t, err)
}

func TestExecute_InvalidFlagSettings(t *testing.T) {
	err := Execute("dev", "discussion-search", []string{"worker", "--worker-concurrency", "0", "--port", "99999"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid settings")
}

func TestRunMain_ExitsOnError(t *testing.T) {
	code := -1
	runMain([]string{"discussion-search", "no-such-command"}, func(c int) { code = c })
	assert.Equal(t, 1, code)
}
