package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mcpd/internal/domain"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcprouter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadNormalizesUpstreamsAndDefaults(t *testing.T) {
	path := writeConfig(t, `
name: test-router
upstreams:
  - id: browser
    transport: stdio
    command: browser-mcp
  - id: search
    transport: http
    endpoint: https://example.internal/mcp
`)

	cfg, err := NewLoader(nil).Load(path)
	require.NoError(t, err)
	require.Equal(t, "test-router", cfg.Name)
	require.Equal(t, domain.NamespacePrefixed, cfg.NamespaceStrategy)
	require.Len(t, cfg.Upstreams, 2)
	require.Equal(t, "browser", cfg.Upstreams[0].ID)
	require.Equal(t, "search", cfg.Upstreams[1].ID)
}

func TestLoadRejectsDuplicateUpstreamIDs(t *testing.T) {
	path := writeConfig(t, `
upstreams:
  - id: a
    transport: stdio
    command: one
  - id: a
    transport: stdio
    command: two
`)
	_, err := NewLoader(nil).Load(path)
	require.Error(t, err)
}

func TestLoadRejectsStdioUpstreamWithoutCommand(t *testing.T) {
	path := writeConfig(t, `
upstreams:
  - id: a
    transport: stdio
`)
	_, err := NewLoader(nil).Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownNamespaceStrategy(t *testing.T) {
	path := writeConfig(t, `
namespaceStrategy: nonsense
upstreams: []
`)
	_, err := NewLoader(nil).Load(path)
	require.Error(t, err)
}

func TestLoadRequiresPath(t *testing.T) {
	_, err := NewLoader(nil).Load("")
	require.Error(t, err)
}
