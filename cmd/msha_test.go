package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/minesite-cli/internal/msha"
)

func newFilterCmd(t *testing.T, inline, file string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "download"}
	c.Flags().String("filter-json", "", "")
	c.Flags().String("filter-file", "", "")
	if inline != "" {
		require.NoError(t, c.Flags().Set("filter-json", inline))
	}
	if file != "" {
		require.NoError(t, c.Flags().Set("filter-file", file))
	}
	return c
}

func TestLoadFilter_None(t *testing.T) {
	raw, err := loadFilter(newFilterCmd(t, "", ""))
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestLoadFilter_Inline(t *testing.T) {
	raw, err := loadFilter(newFilterCmd(t, `{"field":"state","operator":"eq","value":"NV"}`, ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"field":"state","operator":"eq","value":"NV"}`, string(raw))
}

func TestLoadFilter_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"and":[]}`), 0o644))

	raw, err := loadFilter(newFilterCmd(t, "", path))
	require.NoError(t, err)
	assert.JSONEq(t, `{"and":[]}`, string(raw))
}

func TestLoadFilter_Errors(t *testing.T) {
	_, err := loadFilter(newFilterCmd(t, `{}`, "f.json"))
	assert.ErrorContains(t, err, "not both")

	_, err = loadFilter(newFilterCmd(t, `{not json`, ""))
	assert.ErrorContains(t, err, "not valid JSON")

	_, err = loadFilter(newFilterCmd(t, "", filepath.Join(t.TempDir(), "missing.json")))
	assert.ErrorContains(t, err, "msha: read filter file")
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"sort=asc", "sort_by=MINE_ID", " fields =A,B"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"sort": "asc", "sort_by": "MINE_ID", "fields": "A,B"}, params)

	params, err = parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, params)
}

func TestParseParams_Invalid(t *testing.T) {
	for _, bad := range []string{"novalue", "=x"} {
		_, err := parseParams([]string{bad})
		assert.ErrorContains(t, err, "expected KEY=VALUE", bad)
	}
}

func TestParseParams_ValueMayContainEquals(t *testing.T) {
	params, err := parseParams([]string{"q=a=b"})
	require.NoError(t, err)
	assert.Equal(t, "a=b", params["q"])
}

func TestFormatEndpoints(t *testing.T) {
	rows := []msha.Endpoint{
		{"agency": "MSHA", "endpoint": "mines", "description": "Mine addresses"},
		{"agency": "MSHA", "endpoint": "accident", "description": "Accidents"},
	}

	var buf bytes.Buffer
	formatEndpoints(&buf, rows)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Regexp(t, `^AGENCY\s+ENDPOINT\s+DESCRIPTION$`, lines[0])
	assert.Contains(t, lines[1], "mines")
	assert.Contains(t, lines[2], "Accidents")
}

func TestFormatEndpoints_Empty(t *testing.T) {
	var buf bytes.Buffer
	formatEndpoints(&buf, nil)
	assert.Equal(t, "No endpoints found.\n", buf.String())
}
