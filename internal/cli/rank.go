package cli

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/raphaelgruber/pairrank/internal/catalog"
	"github.com/raphaelgruber/pairrank/internal/config"
	"github.com/raphaelgruber/pairrank/internal/export"
	"github.com/raphaelgruber/pairrank/internal/llm"
	"github.com/raphaelgruber/pairrank/internal/metrics"
	"github.com/raphaelgruber/pairrank/internal/models"
	"github.com/raphaelgruber/pairrank/internal/oracle"
	"github.com/raphaelgruber/pairrank/internal/ranking"
	"github.com/raphaelgruber/pairrank/internal/solver"
)

var (
	rankCatalog     string
	rankPosition    string
	rankMax         int
	rankSeed        uint64
	rankOracle      string
	rankRetries     int
	rankComparisons string
	rankSolver      solverFlags
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank items by answering pairwise questions",
	Long: `Rank every item in a catalog by answering "which do you prefer, and by how
much?" for pairs of items, then print a score from 0 to 100 per item.

Items are presented in random order. Use --seed to make the order repeatable.

Examples:
  pairrank rank --catalog players.json
  pairrank rank -c players.json --position WR -n 24
  pairrank rank -c players.yaml --comparisons-out answers.json -f csv -o wr.csv
  pairrank rank --oracle llm`,
	Args: cobra.NoArgs,
	RunE: runRank,
}

func init() {
	rankCmd.Flags().StringVarP(&rankCatalog, "catalog", "c", "players.json", "catalog file (JSON or YAML)")
	rankCmd.Flags().StringVarP(&rankPosition, "position", "p", "", "only rank this position (RB, WR, TE, QB)")
	rankCmd.Flags().IntVarP(&rankMax, "max", "n", 0, "only rank the first N matching items (0 = all)")
	rankCmd.Flags().Uint64Var(&rankSeed, "seed", 0, "seed for the presentation order (0 = random)")
	rankCmd.Flags().StringVar(&rankOracle, "oracle", "auto", "who answers: auto, tui, console, llm")
	rankCmd.Flags().IntVar(&rankRetries, "max-retries", 0, "give up after this many invalid answers to one question (0 = never)")
	rankCmd.Flags().StringVar(&rankComparisons, "comparisons-out", "", "save every answer to this file for 'pairrank score'")
	rankSolver.register(rankCmd)
}

func applyRankFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("catalog") {
		cfg.Catalog.Path = rankCatalog
	}
	if flags.Changed("position") {
		cfg.Catalog.Position = rankPosition
	}
	if flags.Changed("max") {
		cfg.Catalog.MaxItems = rankMax
	}
	if flags.Changed("seed") {
		cfg.Session.Seed = rankSeed
	}
	if flags.Changed("oracle") {
		cfg.Session.Oracle = rankOracle
	}
	if flags.Changed("max-retries") {
		cfg.Session.MaxRetries = rankRetries
	}
	if flags.Changed("comparisons-out") {
		cfg.Output.ComparisonsPath = rankComparisons
	}
	rankSolver.apply(cmd)
	return cfg.Validate()
}

func runRank(cmd *cobra.Command, args []string) error {
	if err := applyRankFlags(cmd); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items, err := loadItems()
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	o, onProgress, err := newOracle(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), collector)
	if err != nil {
		return err
	}

	seed := cfg.Session.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	session := ranking.NewSession(rand.New(rand.NewPCG(seed, seed>>1|1)), logger)
	session.MaxRetries = cfg.Session.MaxRetries
	session.Metrics = collector
	session.OnProgress = onProgress

	logger.Info("ranking", "items", len(items), "seed", seed, "oracle", cfg.Session.Oracle)
	res, err := session.Run(ctx, items, o)
	if err != nil {
		return fmt.Errorf("ranking session: %w", err)
	}

	if cfg.Output.ComparisonsPath != "" {
		log := export.ComparisonLog{SessionID: res.ID, Items: res.Ranked, Comparisons: res.Comparisons}
		if err := export.SaveComparisons(cfg.Output.ComparisonsPath, log); err != nil {
			return err
		}
		logger.Info("comparisons saved", "path", cfg.Output.ComparisonsPath, "count", len(res.Comparisons))
	}

	scored, err := solver.New(solverOptions(), collector, logger).Solve(ctx, res.Ranked, res.Comparisons)
	if err != nil {
		return fmt.Errorf("solve scores: %w", err)
	}

	if err := writeResults(cmd.OutOrStdout(), scored.Scores); err != nil {
		return err
	}

	if verbose {
		printStats(cmd.ErrOrStderr(), collector.Snapshot(), len(res.Comparisons))
	}
	return nil
}

// loadItems reads the catalog and applies the position filter and limit.
func loadItems() ([]models.Item, error) {
	all, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var position models.Position
	if cfg.Catalog.Position != "" {
		position, err = models.ParsePosition(cfg.Catalog.Position)
		if err != nil {
			return nil, err
		}
	}

	items := catalog.Filter(all, position, cfg.Catalog.MaxItems)
	logger.Debug("catalog loaded", "total", len(all), "selected", len(items), "position", position)
	return items, nil
}

// newOracle builds the configured oracle. The returned progress callback
// may be nil.
func newOracle(ctx context.Context, in io.Reader, out io.Writer, collector *metrics.Collector) (oracle.Oracle, func(placed, total int), error) {
	kind := cfg.Session.Oracle
	if kind == config.OracleAuto {
		kind = config.OracleConsole
		if isTerminal(in) && isTerminal(out) {
			kind = config.OracleTUI
		}
	}

	switch kind {
	case config.OracleTUI:
		tui := NewTUIOracle(in, out)
		return tui, tui.SetProgress, nil

	case config.OracleConsole:
		return oracle.NewConsole(in, out), nil, nil

	case config.OracleLLM:
		model, err := llm.NewModel(ctx, cfg.LLM)
		if err != nil {
			return nil, nil, fmt.Errorf("init model: %w", err)
		}
		logger.Info("using language model oracle", "provider", cfg.LLM.Provider, "model", model.Model())
		o := llm.NewOracle(model, logger)
		o.Metrics = collector
		return o, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported oracle %q", kind)
	}
}

func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}
