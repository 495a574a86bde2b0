package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootRejectsMissingConfigFile(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "crawl", "acme.com", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "load config")
}

func TestCrawlRefusesUnsafeTarget(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "crawl", "localhost")
	require.ErrorContains(t, err, "refusing to crawl")
}

func TestCrawlRequiresDomain(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "crawl")
	require.Error(t, err)
}

func TestResolveEnvWithoutPreRun(t *testing.T) {
	t.Parallel()

	_, err := resolveEnv(context.Background())
	require.ErrorContains(t, err, "not initialized")
}
