package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/raphaelgruber/pairrank/internal/metrics"
	"github.com/raphaelgruber/pairrank/internal/models"
	"github.com/raphaelgruber/pairrank/internal/oracle"
)

// Generator produces a completion for a system and user prompt. *Model
// implements it.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (Completion, error)
}

// Default retry policy for provider failures that are not ErrFatalAPI.
const (
	DefaultMaxAttempts     = 4
	DefaultInitialInterval = time.Second
	DefaultMaxInterval     = 30 * time.Second
)

// Oracle asks a language model the same two questions a human gets.
// Replies that do not follow the answer format are reported as
// oracle.ErrInvalidInput so the session asks again. Provider errors are
// retried with exponential backoff unless they wrap ErrFatalAPI.
type Oracle struct {
	gen    Generator
	logger *slog.Logger

	// MaxAttempts bounds provider calls per comparison.
	MaxAttempts uint
	// InitialInterval is the first backoff delay; it doubles per attempt
	// up to DefaultMaxInterval.
	InitialInterval time.Duration

	// Metrics, if set, receives call timings and token usage.
	Metrics *metrics.Collector
}

// NewOracle creates a model-backed oracle with the default retry policy.
func NewOracle(gen Generator, logger *slog.Logger) *Oracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Oracle{
		gen:             gen,
		logger:          logger,
		MaxAttempts:     DefaultMaxAttempts,
		InitialInterval: DefaultInitialInterval,
	}
}

var (
	choiceRe   = regexp.MustCompile(`(?im)^\s*CHOICE:\s*(\S+)\s*$`)
	strengthRe = regexp.MustCompile(`(?im)^\s*STRENGTH:\s*(\S+)\s*$`)
)

func systemPrompt() string {
	var sb strings.Builder
	sb.WriteString(`You are helping rank fantasy football players by answering pairwise comparisons.
For each pair, decide which player you prefer, then how strongly, using this scale:
`)
	for _, l := range oracle.Levels {
		fmt.Fprintf(&sb, "%d) %s\n", l, l.Label())
	}
	sb.WriteString(`
Reply with exactly two lines and nothing else:
CHOICE: <1 or 2>
STRENGTH: <1-6>`)
	return sb.String()
}

// Compare asks the model to choose between a and b.
func (o *Oracle) Compare(ctx context.Context, a, b models.Item) (float64, error) {
	userPrompt := fmt.Sprintf("Which player do you prefer?\n1) %s\n2) %s", a, b)

	reply, err := o.generate(ctx, userPrompt)
	if err != nil {
		return 0, err
	}

	diff, err := parseReply(reply.Text)
	if err != nil {
		o.logger.Debug("unusable model reply", "reply", reply.Text, "error", err)
		return 0, err
	}
	return diff, nil
}

// generate calls the model, retrying transient provider failures. Fatal
// API errors and cancellation stop immediately.
func (o *Oracle) generate(ctx context.Context, userPrompt string) (Completion, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = o.InitialInterval
	policy.MaxInterval = DefaultMaxInterval

	attempts := o.MaxAttempts
	if attempts == 0 {
		attempts = DefaultMaxAttempts
	}

	attempt := 0
	return backoff.Retry(ctx, func() (Completion, error) {
		attempt++
		start := time.Now()
		c, err := o.gen.Generate(ctx, systemPrompt(), userPrompt)
		if err != nil {
			if errors.Is(err, ErrFatalAPI) || ctx.Err() != nil {
				return Completion{}, backoff.Permanent(err)
			}
			if uint(attempt) < attempts {
				o.logger.Warn("model call failed, retrying", "attempt", attempt, "error", err)
			}
			return Completion{}, err
		}

		if o.Metrics != nil {
			o.Metrics.RecordLLMUsage(metrics.OpLLMGenerate, time.Since(start), c.InputTokens, c.OutputTokens)
		}
		return c, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(attempts))
}

// parseReply extracts the signed magnitude from a model reply.
func parseReply(reply string) (float64, error) {
	choice := choiceRe.FindStringSubmatch(reply)
	if choice == nil {
		return 0, fmt.Errorf("%w: reply has no CHOICE line", oracle.ErrInvalidInput)
	}
	strength := strengthRe.FindStringSubmatch(reply)
	if strength == nil {
		return 0, fmt.Errorf("%w: reply has no STRENGTH line", oracle.ErrInvalidInput)
	}

	first, err := oracle.ParseChoice(choice[1])
	if err != nil {
		return 0, err
	}
	level, err := oracle.ParseLevel(strength[1])
	if err != nil {
		return 0, err
	}
	return oracle.Signed(first, level), nil
}
