package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleEvents = filepath.Join("testdata", "events", "sample.json")

func TestMatchCommand_Text(t *testing.T) {
	out, err := execute(t, NewMatchCommand(&RootOptions{Format: "text"}), "",
		`type = "track"`, "--events", sampleEvents)
	require.NoError(t, err)

	assert.Equal(t,
		"✓ [0] track \"Order Completed\"\n"+
			"✓ [1] track \"Product Viewed\"\n"+
			"✗ [2] identify\n"+
			"2 of 3 event(s) matched\n",
		out)
}

func TestMatchCommand_JSONFromStdin(t *testing.T) {
	stdin := `{"type":"track","event":"Order Completed","properties":{"total":50}}`
	out, err := execute(t, NewMatchCommand(&RootOptions{Format: "json"}), stdin,
		`event = "Order Completed" and properties.total>=100`)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   MatchSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, `event = "Order Completed" and properties.total >= 100`, resp.Data.Canonical)
	assert.Equal(t, 0, resp.Data.Matched)
	assert.Equal(t, []MatchResult{{Index: 0, Type: "track", Event: "Order Completed", Matched: false}}, resp.Data.Results)
}

func TestMatchCommand_Errors(t *testing.T) {
	_, err := execute(t, NewMatchCommand(&RootOptions{Format: "text"}), `{}`, `type = `)
	assert.Equal(t, ExitFailure, GetExitCode(err), "invalid expression")

	out, err := execute(t, NewMatchCommand(&RootOptions{Format: "text"}), `not json`, `type = "track"`)
	assert.Equal(t, ExitCommandError, GetExitCode(err), "invalid events")
	assert.Contains(t, out, "Error [INVALID_INPUT]")

	_, err = execute(t, NewMatchCommand(&RootOptions{Format: "text"}), "", `type = "track"`, "--events", "/nonexistent.json")
	assert.Equal(t, ExitCommandError, GetExitCode(err), "missing events file")
}

func TestDescribeEvent(t *testing.T) {
	assert.Equal(t, `track "A"`, describeEvent("track", "A"))
	assert.Equal(t, "page", describeEvent("page", ""))
	assert.Equal(t, `"A"`, describeEvent("", "A"))
	assert.Equal(t, "(untyped)", describeEvent("", ""))
}
