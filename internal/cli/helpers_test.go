package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mondai/internal/dataset"
	"github.com/roach88/mondai/internal/ir"
	"github.com/roach88/mondai/internal/testutil"
)

// writeDataset writes a clean N3 record and an N3 record whose stored
// reading count is 10 against an actual 3.
func writeDataset(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	clean := testutil.N3Record()
	clean.Statistics = testutil.Stats(3, 3, 3, 6)

	stale := testutil.N3Record()
	stale.ID = "n3-stale"
	stale.Statistics = testutil.Stats(3, 3, 10, 6)

	saveRecord(t, filepath.Join(root, "N3", "official", "clean.json"), clean)
	saveRecord(t, filepath.Join(root, "N3", "official", "stale.json"), stale)
	return root
}

// writeCleanDataset writes a dataset with a single valid record.
func writeCleanDataset(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	rec := testutil.N3Record()
	rec.Statistics = testutil.Stats(3, 3, 3, 6)
	saveRecord(t, filepath.Join(root, "N3", "official", "clean.json"), rec)
	return root
}

func saveRecord(t *testing.T, path string, rec *ir.Record) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, dataset.Save(path, rec))
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decode unmarshals a JSON response and its data payload into data.
func decode(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var resp struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp.CLIResponse
}
