package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/raphaelgruber/pairrank/internal/config"
	"github.com/raphaelgruber/pairrank/internal/export"
	"github.com/raphaelgruber/pairrank/internal/metrics"
	"github.com/raphaelgruber/pairrank/internal/models"
	"github.com/raphaelgruber/pairrank/internal/oracle"
)

var (
	mahomes = models.Item{Name: "Patrick Mahomes", Team: "KC", Position: models.PositionQB}
	burrow  = models.Item{Name: "Joe Burrow", Team: "CIN", Position: models.PositionQB}
)

func TestPromptModel_HandleKey(t *testing.T) {
	tests := []struct {
		name        string
		keys        []string
		wantStage   promptStage
		wantFirst   bool
		wantLevel   oracle.Level
		wantInvalid string
		wantAborted bool
	}{
		{"answer first", []string{"1", "4"}, stageDone, true, oracle.LevelTiers, "", false},
		{"answer second", []string{"2", "1"}, stageDone, false, oracle.LevelTossup, "", false},
		{"bad choice", []string{"x"}, stageChoice, false, 0, invalidChoice, false},
		{"bad strength", []string{"1", "7"}, stageStrength, true, 0, invalidStrength, false},
		{"recovers after bad key", []string{"9", "2", "0", "6"}, stageDone, false, oracle.LevelGalaxies, "", false},
		{"escape", []string{"1", "esc"}, stageStrength, true, 0, "", true},
		{"ctrl+c", []string{"ctrl+c"}, stageChoice, false, 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newPromptModel(mahomes, burrow, 0, 0)
			for _, k := range tt.keys {
				m = m.handleKey(k)
			}

			if m.stage != tt.wantStage {
				t.Errorf("stage = %v, want %v", m.stage, tt.wantStage)
			}
			if m.aborted != tt.wantAborted {
				t.Errorf("aborted = %v, want %v", m.aborted, tt.wantAborted)
			}
			if m.invalid != tt.wantInvalid {
				t.Errorf("invalid = %q, want %q", m.invalid, tt.wantInvalid)
			}
			if m.stage == stageDone {
				if m.firstChosen != tt.wantFirst || m.level != tt.wantLevel {
					t.Errorf("answer = (%v, %v), want (%v, %v)", m.firstChosen, m.level, tt.wantFirst, tt.wantLevel)
				}
			}
		})
	}
}

func TestPromptModel_Render(t *testing.T) {
	m := newPromptModel(mahomes, burrow, 3, 12)

	out := m.renderContent()
	for _, want := range []string{"Which player do you prefer?", "1) Patrick Mahomes - QB, KC", "2) Joe Burrow - QB, CIN", "3/12 placed"} {
		if !strings.Contains(out, want) {
			t.Errorf("choice view missing %q:\n%s", want, out)
		}
	}

	m = m.handleKey("2")
	out = m.renderContent()
	for _, want := range []string{"How much do you prefer them?", "Joe Burrow", "5) Different leagues"} {
		if !strings.Contains(out, want) {
			t.Errorf("strength view missing %q:\n%s", want, out)
		}
	}

	m = m.handleKey("8")
	if !strings.Contains(m.renderContent(), invalidStrength) {
		t.Errorf("view missing invalid hint:\n%s", m.renderContent())
	}
}

// typeKeys feeds keys to the returned reader one at a time, like a person
// typing. The writer is closed when the test ends.
func typeKeys(t *testing.T, keys ...string) io.Reader {
	t.Helper()
	pr, pw := io.Pipe()
	t.Cleanup(func() { _ = pw.Close() })

	go func() {
		for _, k := range keys {
			if _, err := pw.Write([]byte(k)); err != nil {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}()
	return pr
}

func TestTUIOracle_Compare(t *testing.T) {
	tests := []struct {
		name    string
		keys    []string
		want    float64
		wantErr error
	}{
		{"first chosen", []string{"1", "4"}, 8, nil},
		{"second chosen after bad key", []string{"2", "x", "3"}, -4, nil},
		{"quit", []string{"q"}, 0, oracle.ErrAborted},
		{"quit while choosing strength", []string{"1", "q"}, 0, oracle.ErrAborted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			o := NewTUIOracle(typeKeys(t, tt.keys...), &bytes.Buffer{})
			o.SetProgress(1, 4)
			got, err := o.Compare(ctx, mahomes, burrow)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Compare() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Compare() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Compare() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTUIOracle_CompareCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewTUIOracle(typeKeys(t), &bytes.Buffer{})
	if _, err := o.Compare(ctx, mahomes, burrow); !errors.Is(err, context.Canceled) {
		t.Errorf("Compare() error = %v, want context.Canceled", err)
	}
}

func TestPrintStats_TokenUsage(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordTiming(metrics.OpCompare, time.Millisecond)
	c.RecordLLMUsage(metrics.OpLLMGenerate, time.Millisecond, 120, 8)

	var buf bytes.Buffer
	printStats(&buf, c.Snapshot(), 1)

	for _, want := range []string{"Model Calls:", "Tokens In:  120 total", "Tokens Out: 8 total"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("stats missing %q:\n%s", want, buf.String())
		}
	}
}

func TestNewOracle_AutoFallsBackToConsole(t *testing.T) {
	cfg = &config.Config{Session: config.SessionConfig{Oracle: config.OracleAuto}}

	o, progress, err := newOracle(t.Context(), strings.NewReader(""), &bytes.Buffer{}, nil)
	if err != nil {
		t.Fatalf("newOracle() error = %v", err)
	}
	if _, ok := o.(*oracle.Console); !ok {
		t.Errorf("newOracle() = %T, want *oracle.Console for non-terminal input", o)
	}
	if progress != nil {
		t.Error("console oracle should not report progress")
	}

	cfg.Session.Oracle = config.OracleTUI
	o, progress, err = newOracle(t.Context(), strings.NewReader(""), &bytes.Buffer{}, nil)
	if err != nil {
		t.Fatalf("newOracle() error = %v", err)
	}
	if _, ok := o.(*TUIOracle); !ok || progress == nil {
		t.Errorf("newOracle() = %T, want *TUIOracle with progress", o)
	}
}

// resetFlags restores every flag of cmd and its subcommands to its default
// so one Execute does not leak into the next.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if err := f.Value.Set(f.DefValue); err != nil {
			t.Fatalf("reset flag --%s: %v", f.Name, err)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(t, sub)
	}
}

// runCLI executes the root command with isolated config, log file and flags.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(t, rootCmd)
	t.Setenv(config.ConfigPathEnvVar, "")
	t.Setenv("PAIRRANK_LOGGING_FILE", filepath.Join(t.TempDir(), "pairrank.log"))

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return stdout.String(), err
}

func TestRankAndScore(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "players.json")
	logPath := filepath.Join(dir, "answers.json")

	items := []models.Item{
		mahomes,
		burrow,
		{Name: "Lamar Jackson", Team: "BAL", Position: models.PositionQB},
		{Name: "Bijan Robinson", Team: "ATL", Position: models.PositionRB},
	}
	data, err := json.Marshal(items)
	if err != nil {
		t.Fatal(err)
	}
	if err := writeFile(catalogPath, data); err != nil {
		t.Fatal(err)
	}

	// Always prefer the newcomer a little: every answer is valid.
	answers := strings.Repeat("1\n2\n", 10)
	out, err := runCLI(t, answers,
		"rank", "--oracle", "console", "-c", catalogPath, "-p", "QB",
		"--seed", "11", "-f", "json", "--comparisons-out", logPath,
	)
	if err != nil {
		t.Fatalf("rank error = %v", err)
	}

	// prompts go to stderr, results to stdout
	var records []models.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("rank output is not JSON: %v\n%s", err, out)
	}
	if len(records) != 3 {
		t.Fatalf("rank returned %d records, want 3 quarterbacks", len(records))
	}
	if records[0].Score != 100 || records[2].Score != 0 {
		t.Errorf("scores = %v, %v, %v; want 100 ... 0", records[0].Score, records[1].Score, records[2].Score)
	}

	log, err := export.LoadComparisons(logPath)
	if err != nil {
		t.Fatalf("LoadComparisons() error = %v", err)
	}
	if len(log.Items) != 3 || len(log.Comparisons) == 0 {
		t.Fatalf("comparison log = %+v", log)
	}

	out, err = runCLI(t, "", "score", logPath, "-f", "csv")
	if err != nil {
		t.Fatalf("score error = %v", err)
	}
	if !strings.HasPrefix(out, "rank,name,team,position,score\n") {
		t.Errorf("score output = %q", out)
	}
	if strings.Count(out, "\n") != 4 {
		t.Errorf("score output has %d lines, want 4:\n%s", strings.Count(out, "\n"), out)
	}
}

func TestRank_RejectsBadCatalog(t *testing.T) {
	catalogPath := filepath.Join(t.TempDir(), "players.json")
	if err := writeFile(catalogPath, []byte(`[{"name": "X", "team": "Y", "position": "K"}]`)); err != nil {
		t.Fatal(err)
	}

	_, err := runCLI(t, "", "rank", "--oracle", "console", "-c", catalogPath)
	if err == nil {
		t.Fatal("rank should fail on an unknown position")
	}
}

func TestRunCLI_FlagsDoNotLeak(t *testing.T) {
	catalogPath := filepath.Join(t.TempDir(), "players.json")
	if err := writeFile(catalogPath, []byte(`[{"name": "X", "team": "Y", "position": "K"}]`)); err != nil {
		t.Fatal(err)
	}

	if _, err := runCLI(t, "", "rank", "--oracle", "console", "-c", catalogPath, "-p", "QB", "--seed", "7", "-f", "json"); err == nil {
		t.Fatal("rank should fail on an unknown position")
	}
	if _, err := runCLI(t, "", "rank", "--oracle", "console", "-c", catalogPath); err == nil {
		t.Fatal("rank should fail on an unknown position")
	}

	if cfg.Catalog.Position != "" || cfg.Session.Seed != 0 || cfg.Output.Format != "table" {
		t.Errorf("flags from the previous run leaked: position=%q seed=%d format=%q",
			cfg.Catalog.Position, cfg.Session.Seed, cfg.Output.Format)
	}
	if rankCmd.Flags().Changed("position") {
		t.Error("--position still marked as changed")
	}
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
