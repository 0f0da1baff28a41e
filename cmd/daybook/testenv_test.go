package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/daybook/internal/logger"
)

// testEnv is an isolated config and data directory for running the CLI
// in-process.
type testEnv struct {
	t       *testing.T
	TempDir string
	Config  string
	DataDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Cleanup(logger.Discard)

	tempDir := t.TempDir()
	dataDir := filepath.Join(tempDir, "data")
	configDir := filepath.Join(tempDir, "config")

	require.NoError(t, os.MkdirAll(configDir, 0o755))
	content := "backend: sqlite\ndata_dir: " + dataDir + "\ntimezone: UTC\n"
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0o644))

	return &testEnv{t: t, TempDir: tempDir, Config: configDir, DataDir: dataDir}
}

type cmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func (e *testEnv) run(args ...string) cmdResult {
	e.t.Helper()
	all := append([]string{"--config-dir", e.Config}, args...)
	var stdout, stderr bytes.Buffer
	code := run(all, &stdout, &stderr)
	return cmdResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: code}
}

func (e *testEnv) mustRun(args ...string) cmdResult {
	e.t.Helper()
	res := e.run(args...)
	require.Equalf(e.t, exitSuccess, res.ExitCode, "daybook %v\nstdout: %s\nstderr: %s", args, res.Stdout, res.Stderr)
	return res
}

func (e *testEnv) path(name string) string {
	return filepath.Join(e.TempDir, name)
}

func parseJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), "output: %s", s)
	return v
}
