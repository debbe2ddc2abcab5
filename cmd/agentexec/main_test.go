package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mockConfig = `
log:
  level: error
agent:
  provider: mock
  model: mock-model
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "agentexec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(mockConfig), 0o600))

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", path}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hello\n", out)
}

func TestRunCommandStreaming(t *testing.T) {
	out, err := execute(t, "run", "--stream", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hello\n", out)
}

func TestRunCommandRequiresInput(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
}

func TestRunCommandInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentexec.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  provider: unknown\n"), 0o600))

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "run", "hello"})
	require.Error(t, cmd.Execute())
}
