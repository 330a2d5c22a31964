package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validCatalog = filepath.Join("..", "catalog", "testdata", "valid")

func TestValidateValidCatalog(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "", validCatalog)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All 5 subscription(s) valid")
}

func TestValidateValidCatalogJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), "", validCatalog)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 5, resp.Data.Subscriptions)
}

func TestValidateDefaultsToCatalogOption(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text", CatalogDir: validCatalog}), "")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All 5 subscription(s) valid")
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005") // catalog.ErrCodeNotFound
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
}

func TestValidateInvalidSubscribe(t *testing.T) {
	dir := writeCatalog(t, "destination: webhook\nactions:\n  - name: good\n    subscribe: type = \"track\"\n  - name: bad\n    subscribe: type =\n  - name: worse\n    subscribe: match(event, \"x\")\n")

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "2 error(s)")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "catalog.yaml:6")
	assert.Contains(t, out, "E201: webhook/bad")
	assert.Contains(t, out, "E201: webhook/worse")
}

func TestValidateInvalidSubscribeJSON(t *testing.T) {
	dir := writeCatalog(t, "destination: webhook\nactions:\n  - name: bad\n    subscribe: contains(event)\n")

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), "", dir)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, "E201", resp.Data.Errors[0].Code)
	assert.Equal(t, 4, resp.Data.Errors[0].Line)
	assert.Equal(t, "E201", resp.Error.Code)
}

// writeCatalog writes content as catalog.yaml in a fresh directory.
func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "catalog.yaml"), []byte(content), 0o644))
	return dir
}
