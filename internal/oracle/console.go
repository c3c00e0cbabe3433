package oracle

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/raphaelgruber/pairrank/internal/models"
)

// Console asks the two questions over a line-oriented reader and writer.
// Invalid answers are rejected and asked again; only end of input or a
// cancelled context stops it.
type Console struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsole creates a console oracle.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// Compare prompts for a choice and then a strength level.
func (c *Console) Compare(ctx context.Context, a, b models.Item) (float64, error) {
	prompt := fmt.Sprintf("Which player do you prefer?\n    1) %s\n    2) %s\n", a, b)
	choice, err := c.ask(ctx, prompt, "Invalid choice. Please select 1 or 2.", func(s string) error {
		_, err := ParseChoice(s)
		return err
	})
	if err != nil {
		return 0, err
	}
	first, _ := ParseChoice(choice)

	var sb strings.Builder
	sb.WriteString("How much do you prefer them?\n")
	for _, l := range Levels {
		fmt.Fprintf(&sb, "    %d) %s\n", l, l.Label())
	}
	strength, err := c.ask(ctx, sb.String(), "Invalid choice. Please select 1-6.", func(s string) error {
		_, err := ParseLevel(s)
		return err
	})
	if err != nil {
		return 0, err
	}
	level, _ := ParseLevel(strength)

	return Signed(first, level), nil
}

// ask repeats prompt until validate accepts the trimmed answer.
func (c *Console) ask(ctx context.Context, prompt, invalid string, validate func(string) error) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if _, err := io.WriteString(c.out, prompt); err != nil {
			return "", fmt.Errorf("write prompt: %w", err)
		}

		line, err := c.in.ReadString('\n')
		answer := strings.TrimSpace(line)
		if err != nil && (err != io.EOF || answer == "") {
			if err == io.EOF {
				return "", fmt.Errorf("read answer: %w", ErrAborted)
			}
			return "", fmt.Errorf("read answer: %w", err)
		}

		if validate(answer) == nil {
			return answer, nil
		}
		fmt.Fprintln(c.out, invalid)
	}
}
