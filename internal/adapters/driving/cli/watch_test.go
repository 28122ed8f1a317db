package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/brief-cli/internal/adapters/driving/mcp"
	"github.com/custodia-labs/brief-cli/internal/adapters/driving/watch"
	"github.com/custodia-labs/brief-cli/internal/core/domain"
)

func TestWatchCmd_Flags(t *testing.T) {
	assert.Equal(t, "watch [directory]", watchCmd.Use)
	for _, name := range []string{"category", "tags", "existing", "replace", "metrics-addr"} {
		assert.NotNil(t, watchCmd.Flags().Lookup(name), "missing flag %s", name)
	}
}

func TestWatchCmd_RejectsFile(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	path := writeTempFile(t, "a.txt", "text")

	_, err := execute("watch", path)

	require.Error(t, err)
	assert.ErrorIs(t, err, watch.ErrNotDirectory)
}

func TestWatchCmd_MissingDirectory(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("watch", filepath.Join(t.TempDir(), "missing"))

	require.Error(t, err)
}

func TestWatchCmd_NotConfigured(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	fileReader = nil

	_, err := execute("watch", t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "file reader service not configured")
}

func TestMCPServeCmd_Flags(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
	assert.NotNil(t, mcpServeCmd.Flags().Lookup("metrics-addr"))

	host := mcpServeCmd.Flags().Lookup("host")
	require.NotNil(t, host)
	assert.Equal(t, "127.0.0.1", host.DefValue)
}

func TestMCPServeCmd_RejectsInvalidPort(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("mcp", "serve", "--port", "70000")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMCPServeCmd_RequiresSearch(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	searchService = nil

	_, err := execute("mcp", "serve")

	require.Error(t, err)
	assert.ErrorIs(t, err, mcp.ErrMissingSearchService)
}
