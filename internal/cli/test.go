package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sentinel/internal/harness"
)

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult is the outcome of a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r *TestResult) add(s ScenarioResult) {
	r.Scenarios = append(r.Scenarios, s)
	r.Total++
	if s.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

func (r TestResult) String() string {
	if r.Total == 0 {
		return "No scenarios found."
	}
	var b strings.Builder
	for _, s := range r.Scenarios {
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s %s\n", mark, s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  %s\n", e)
		}
	}
	fmt.Fprintf(&b, "\nTest Summary: %d passed, %d failed, %d total", r.Passed, r.Failed, r.Total)
	if r.Failed == 0 {
		b.WriteString("\n✓ All scenarios passed")
	}
	return b.String()
}

// goldenSet locates and maintains the trace snapshots of a scenario
// directory. Snapshots are named after the scenario file.
type goldenSet struct {
	dir    string
	update bool
}

func (g goldenSet) path(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	return filepath.Join(g.dir, strings.TrimSuffix(base, filepath.Ext(base))+".golden")
}

// check compares the trace with its snapshot, or rewrites the snapshot in
// update mode. A scenario without a snapshot is judged on its
// expectations alone.
func (g goldenSet) check(scenarioFile string, s *harness.Scenario, res *harness.Result) error {
	current, err := harness.Snapshot(s.Name, res)
	if err != nil {
		return fmt.Errorf("snapshot trace: %w", err)
	}
	path := g.path(scenarioFile)

	if g.update {
		if err := os.MkdirAll(g.dir, 0755); err != nil {
			return fmt.Errorf("create golden directory: %w", err)
		}
		return os.WriteFile(path, current, 0644)
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), bytes.TrimSpace(current)) {
		return fmt.Errorf("trace does not match golden file (run with --update to regenerate)")
	}
	return nil
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		filter string
		golden goldenSet
	)

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run field scenarios",
		Long: `Run scenario files against a fresh deployment each.

A scenario sets up traps and rules, walks through inspections, positions
and dispatches, and checks what fired. When a golden file named after the
scenario file exists, the recorded trace must match it too.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing directory, bad filter)`,
		Example: `  sentinel test ./scenarios
  sentinel test ./scenarios --filter "field_*"
  sentinel test ./scenarios --update
  sentinel test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
			}
			if golden.dir == "" {
				golden.dir = filepath.Join(dir, "golden")
			}

			files, err := findScenarioFiles(dir, filter)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to find scenarios", err)
			}

			result := TestResult{Scenarios: []ScenarioResult{}}
			for _, f := range files {
				result.add(runScenario(f, golden))
			}
			return reportTests(rootOpts.formatter(cmd), result)
		},
	}

	cmd.Flags().BoolVar(&golden.update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&golden.dir, "golden-dir", "", "golden file directory (default <scenarios-dir>/golden)")

	return cmd
}

// findScenarioFiles lists the YAML files under dir whose base name
// matches filter. The golden subdirectory is skipped.
func findScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && path != dir && d.Name() == "golden":
			return filepath.SkipDir
		case d.IsDir():
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// runScenario loads, runs and checks one scenario file.
func runScenario(file string, golden goldenSet) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(file),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	res, err := harness.Run(scenario)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	errs := append([]string(nil), res.Errors...)
	if err := golden.check(file, scenario, res); err != nil {
		errs = append(errs, err.Error())
	}
	return ScenarioResult{Name: scenario.Name, Pass: len(errs) == 0, Errors: errs}
}

// reportTests writes the result and turns failures into exit code 1.
// In JSON mode a failed run is a single error response carrying the
// result as data.
func reportTests(f *OutputFormatter, result TestResult) error {
	if result.Failed == 0 {
		return f.Success(result)
	}

	msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
	if f.Format != "json" {
		fmt.Fprintln(f.Writer, result)
		return NewExitError(ExitFailure, msg)
	}

	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(CLIResponse{
		Status: "error",
		Data:   result,
		Error:  &CLIError{Code: "E_TEST_FAILED", Message: msg},
	}); err != nil {
		return err
	}
	err := NewExitError(ExitFailure, msg)
	err.Reported = true
	return err
}
