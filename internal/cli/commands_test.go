package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decode unmarshals the data of a JSON CLIResponse into v.
func decode(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestStatus_EmptyDatabase(t *testing.T) {
	opts := testOptions(t, "text")

	out, err := execute(t, NewStatusCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "(schema v3)")
	assert.Contains(t, out, "traps")
}

func TestStatus_NoDatabase(t *testing.T) {
	opts := &RootOptions{Format: "text"}

	_, err := execute(t, NewStatusCommand(opts))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSeed(t *testing.T) {
	opts := testOptions(t, "text")

	out, err := execute(t, NewSeedCommand(opts))
	require.NoError(t, err)
	assert.Equal(t, "Seeded Bari Loseto: 21 records.\n", out)

	out, err = execute(t, NewSeedCommand(opts))
	require.NoError(t, err)
	assert.Contains(t, out, "nothing seeded")

	opts.Format = "json"
	out, err = execute(t, NewStatusCommand(opts))
	require.NoError(t, err)
	var status StatusResult
	decode(t, out, &status)
	assert.Equal(t, 5, status.Counts["traps"])
	assert.Equal(t, 12, status.Counts["inspections"])
	assert.Equal(t, 3, status.Counts["alerts"])
	assert.Equal(t, 1, status.Counts["messages"])
}

func TestReset_RequiresConfirmation(t *testing.T) {
	opts := seeded(t, "text")

	_, err := execute(t, NewResetCommand(opts))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--yes")
}

func TestReset(t *testing.T) {
	opts := seeded(t, "text")
	_, err := execute(t, NewInspectCommand(opts), "--trap", "trap_1", "--adults", "1")
	require.NoError(t, err)

	out, err := execute(t, NewResetCommand(opts), "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded Bari Loseto")

	opts.Format = "json"
	out, err = execute(t, NewStatusCommand(opts))
	require.NoError(t, err)
	var status StatusResult
	decode(t, out, &status)
	assert.Equal(t, 12, status.Counts["inspections"])
}

func TestRisk_All(t *testing.T) {
	opts := seeded(t, "json")

	out, err := execute(t, NewRiskCommand(opts))
	require.NoError(t, err)

	var res RiskResult
	decode(t, out, &res)
	require.Len(t, res.Traps, 5)
	assert.Equal(t, "trap_2", res.Traps[0].Trap.ID)
	assert.Equal(t, 70, res.Traps[0].Score)
	assert.EqualValues(t, "Medium", res.Traps[0].Level)
	for i := 1; i < len(res.Traps); i++ {
		assert.GreaterOrEqual(t, res.Traps[i-1].Score, res.Traps[i].Score)
	}
}

func TestRisk_OneTrap(t *testing.T) {
	opts := seeded(t, "text")

	out, err := execute(t, NewRiskCommand(opts), "trap_1")
	require.NoError(t, err)
	assert.Contains(t, out, " 60  Medium")
	assert.Contains(t, out, "LO-001")
	assert.Contains(t, out, "Loseto Nord")
}

func TestRisk_UnknownTrap(t *testing.T) {
	opts := seeded(t, "text")

	_, err := execute(t, NewRiskCommand(opts), "trap_99")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "trap_99 not found")
}

func TestReport(t *testing.T) {
	opts := seeded(t, "text")

	out, err := execute(t, NewReportCommand(opts))
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join("..", "report", "testdata", "golden", "loseto_report.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(golden)+"\n", out)
}

func TestReport_Quick(t *testing.T) {
	opts := seeded(t, "text")

	out, err := execute(t, NewReportCommand(opts), "--quick")
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join("..", "report", "testdata", "golden", "loseto_quick.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(golden)+"\n", out)
}

func TestInspect_FiresAdultsRule(t *testing.T) {
	opts := seeded(t, "json")

	out, err := execute(t, NewInspectCommand(opts),
		"--trap", "trap_1", "--adults", "6", "--females", "3", "--temperature", "24.5")
	require.NoError(t, err)

	var res EvaluationResult
	decode(t, out, &res)
	assert.Equal(t, "insp_13", res.InspectionID)
	require.Len(t, res.Fired, 1)
	assert.EqualValues(t, "adults", res.Fired[0].Metric)
	assert.Equal(t, float64(6), res.Fired[0].Value)
	assert.Equal(t, "msg_2", res.MessageID)
	assert.Equal(t, "wa_1", res.OutboxID)
}

func TestInspect_Quiet(t *testing.T) {
	opts := seeded(t, "text")

	out, err := execute(t, NewInspectCommand(opts), "--trap", "trap_3", "--adults", "1", "--date", "2026-10-18")
	require.NoError(t, err)
	assert.Equal(t, "Recorded insp_13\nNo rule fired.\n", out)
}

func TestInspect_Rejected(t *testing.T) {
	opts := seeded(t, "text")

	_, err := execute(t, NewInspectCommand(opts), "--trap", "trap_1", "--date", "19/10/2026")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInspect_RequiresTrap(t *testing.T) {
	opts := seeded(t, "text")

	_, err := execute(t, NewInspectCommand(opts), "--adults", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"trap" not set`)
}

func TestEvaluate_NearTrap(t *testing.T) {
	opts := seeded(t, "json")

	out, err := execute(t, NewEvaluateCommand(opts), "--lat", "41.031518", "--lng", "16.852941")
	require.NoError(t, err)

	var res EvaluationResult
	decode(t, out, &res)
	require.Len(t, res.Fired, 1)
	assert.Equal(t, "trap_5", res.Fired[0].TrapID)
	assert.Equal(t, "msg_2", res.MessageID)
	assert.Empty(t, res.OutboxID)
}

func TestEvaluate_FarAway(t *testing.T) {
	opts := seeded(t, "text")

	out, err := execute(t, NewEvaluateCommand(opts), "--lat", "45.4642", "--lng", "9.19")
	require.NoError(t, err)
	assert.Equal(t, "No rule fired.\n", out)
}

func TestEvaluate_InvalidPosition(t *testing.T) {
	opts := seeded(t, "text")

	_, err := execute(t, NewEvaluateCommand(opts), "--lat", "91", "--lng", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExportImport_RoundTrip(t *testing.T) {
	src := seeded(t, "text")
	path := filepath.Join(t.TempDir(), "bundle.json")

	out, err := execute(t, NewExportCommand(src), "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 21 records to "+path)

	dst := testOptions(t, "text")
	out, err = execute(t, NewImportCommand(dst), path)
	require.NoError(t, err)
	assert.Contains(t, out, "5 traps, 12 inspections, 3 rules, 1 messages")

	dst.Format = "json"
	out, err = execute(t, NewRiskCommand(dst), "trap_2")
	require.NoError(t, err)
	var res RiskResult
	decode(t, out, &res)
	require.Len(t, res.Traps, 1)
	assert.Equal(t, 70, res.Traps[0].Score)
}

func TestExport_Stdout(t *testing.T) {
	opts := seeded(t, "text")

	out, err := execute(t, NewExportCommand(opts))
	require.NoError(t, err)

	var b map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	assert.EqualValues(t, 2, b["version"])
	assert.Len(t, b["traps"], 5)
}

func TestImport_MissingFile(t *testing.T) {
	opts := testOptions(t, "text")

	_, err := execute(t, NewImportCommand(opts), filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCSV(t *testing.T) {
	opts := seeded(t, "text")

	out, err := execute(t, NewCSVCommand(opts))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 13)
}

func TestOutbox_Flow(t *testing.T) {
	opts := seeded(t, "text")
	_, err := execute(t, NewInspectCommand(opts), "--trap", "trap_1", "--adults", "7")
	require.NoError(t, err)

	out, err := execute(t, NewOutboxCommand(opts), "list", "--pending")
	require.NoError(t, err)
	assert.Contains(t, out, "wa_1  pending")

	out, err = execute(t, NewOutboxCommand(opts), "send", "wa_1", "--target", "+39 333 111 2222")
	require.NoError(t, err)
	assert.Contains(t, out, "https://wa.me/393331112222?text=")
	assert.Contains(t, out, "Sent 1: wa_1")

	_, err = execute(t, NewOutboxCommand(opts), "send", "wa_1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err = execute(t, NewOutboxCommand(opts), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "wa_1  sent")
	assert.Contains(t, out, "-> 393331112222")

	out, err = execute(t, NewOutboxCommand(opts), "remove", "wa_1")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 item(s).\n", out)

	out, err = execute(t, NewOutboxCommand(opts), "list")
	require.NoError(t, err)
	assert.Equal(t, "Outbox empty.\n", out)
}

func TestOutbox_SendAllAndClear(t *testing.T) {
	opts := seeded(t, "text")
	for _, adults := range []string{"6", "8"} {
		_, err := execute(t, NewInspectCommand(opts), "--trap", "trap_1", "--adults", adults)
		require.NoError(t, err)
	}

	out, err := execute(t, NewOutboxCommand(opts), "send", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Sent 2: wa_1, wa_2")

	_, err = execute(t, NewInspectCommand(opts), "--trap", "trap_1", "--larvae", "2")
	require.NoError(t, err)
	out, err = execute(t, NewOutboxCommand(opts), "clear")
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 item(s).\n", out)
}

func TestOutbox_SendArguments(t *testing.T) {
	opts := seeded(t, "text")

	_, err := execute(t, NewOutboxCommand(opts), "send")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--all")

	_, err = execute(t, NewOutboxCommand(opts), "send", "--all", "--body", "x")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, NewOutboxCommand(opts), "send", "wa_9")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestOutbox_Targets(t *testing.T) {
	opts := seeded(t, "text")

	out, err := execute(t, NewOutboxCommand(opts), "targets")
	require.NoError(t, err)
	assert.Equal(t, "No targets configured.\n", out)
}
