package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sentinel/internal/alert"
	"github.com/roach88/sentinel/internal/config"
	"github.com/roach88/sentinel/internal/dispatch"
	"github.com/roach88/sentinel/internal/outbox"
	"github.com/roach88/sentinel/internal/record"
	"github.com/roach88/sentinel/internal/store"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]int{"traps": 5})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"traps": float64(5)}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("NOT_FOUND", "trap trap_9 not found", map[string]string{"id": "trap_9"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "trap trap_9 not found", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

type stringerResult struct{ n int }

func (r stringerResult) String() string { return "records: 3" }

func TestOutputFormatter_TextSuccessUsesStringer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Success(stringerResult{n: 3}))
	assert.Equal(t, "records: 3\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			require.NoError(t, formatter.Error("E_DISPATCH", "send failed", "sink shoutrrr"))
			assert.Contains(t, buf.String(), "Error [E_DISPATCH]: send failed")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details: sink shoutrrr")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_TextErrorGoesToErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: out, ErrWriter: errOut}

	require.NoError(t, formatter.Error("E_COMMAND", "give an item id or --all", nil))
	assert.Empty(t, out.String())
	assert.Equal(t, "Error [E_COMMAND]: give an item id or --all\n", errOut.String())
}

func TestErrorCode(t *testing.T) {
	storeErr := &store.Error{
		Code:       store.ErrCodeConstraintViolation,
		Op:         "save inspection",
		Collection: record.Inspections,
		ID:         "insp_1",
	}

	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantDetails any
	}{
		{"store error", WrapExitError(ExitCommandError, "inspection rejected", storeErr), "CONSTRAINT_VIOLATION",
			map[string]string{"op": "save inspection", "collection": "inspections", "id": "insp_1"}},
		{"config error", &config.ConfigError{Type: config.ErrValidation, Message: "bad"}, "E_CONFIG_VALIDATION_FAILED", nil},
		{"already sent", fmt.Errorf("%w: wa_1", outbox.ErrAlreadySent), "E_ALREADY_SENT", nil},
		{"unknown item", fmt.Errorf("%w: wa_9", dispatch.ErrUnknownItem), "NOT_FOUND", nil},
		{"invalid position", fmt.Errorf("%w: 91,0", alert.ErrInvalidPosition), "E_INVALID_POSITION", nil},
		{"command error", NewExitError(ExitCommandError, "no database"), "E_COMMAND", nil},
		{"anything else", errors.New("boom"), "E_FAILED", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, details := ErrorCode(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantDetails, details)
		})
	}
}

func TestExecute_TextError(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	code := Execute([]string{"--db", filepath.Join(t.TempDir(), "x.db"), "risk", "trap_9"}, out, errOut)
	assert.Equal(t, ExitCommandError, code)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Error [E_COMMAND]: trap trap_9 not found")
}

func TestExecute_JSONError(t *testing.T) {
	out := &bytes.Buffer{}

	code := Execute([]string{"--format", "json", "--db", filepath.Join(t.TempDir(), "x.db"), "outbox", "send", "wa_9"}, out, &bytes.Buffer{})
	assert.Equal(t, ExitCommandError, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestExecute_Success(t *testing.T) {
	out := &bytes.Buffer{}

	code := Execute([]string{"--db", filepath.Join(t.TempDir(), "x.db"), "seed"}, out, &bytes.Buffer{})
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out.String(), "Seeded Bari Loseto")
}

func TestExecute_ReportedErrorNotRepeated(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong_expectation.yaml", failingScenario)
	out := &bytes.Buffer{}

	code := Execute([]string{"--format", "json", "--db", filepath.Join(t.TempDir(), "x.db"), "test", dir}, out, &bytes.Buffer{})
	assert.Equal(t, ExitFailure, code)

	dec := json.NewDecoder(out)
	var resp CLIResponse
	require.NoError(t, dec.Decode(&resp))
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.False(t, dec.More())
}

func TestExitError(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to open database", cause)

	assert.Equal(t, "failed to open database: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "1 scenario(s) failed")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}
