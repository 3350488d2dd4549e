package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/testutil"
)

// testOptions points commands at a fresh database with predictable ids and
// a clock fixed at testutil.Epoch.
func testOptions(t *testing.T, format string) *RootOptions {
	t.Helper()
	return &RootOptions{
		Format: format,
		DB:     filepath.Join(t.TempDir(), "sentinel.db"),
		IDs:    &record.SequenceIDs{},
		Now:    testutil.NewClock(testutil.Epoch).Now,
	}
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// seeded returns options over a database holding the Loseto demo site.
func seeded(t *testing.T, format string) *RootOptions {
	t.Helper()
	opts := testOptions(t, format)
	_, err := execute(t, NewSeedCommand(opts))
	require.NoError(t, err)
	return opts
}
