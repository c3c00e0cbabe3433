package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/pairrank/internal/models"
	"github.com/raphaelgruber/pairrank/internal/oracle"
)

// Theme holds the color scheme for the prompt.
type Theme struct {
	Title  lipgloss.Color
	Choice lipgloss.Color
	Error  lipgloss.Color
	Hint   lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Title:  lipgloss.Color("#5FAFD7"), // light blue
	Choice: lipgloss.Color("#00D787"), // green
	Error:  lipgloss.Color("#FF005F"), // red
	Hint:   lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Title).Bold(true)
}

func (t Theme) choiceStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Choice)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

type promptStage int

const (
	stageChoice promptStage = iota
	stageStrength
	stageDone
)

const (
	invalidChoice   = "Invalid choice. Please select 1 or 2."
	invalidStrength = "Invalid choice. Please select 1-6."
)

// promptModel is the bubbletea model for a single comparison.
type promptModel struct {
	a, b        models.Item
	stage       promptStage
	firstChosen bool
	level       oracle.Level
	invalid     string
	aborted     bool

	placed, total int
	progress      progress.Model
	theme         Theme
}

func newPromptModel(a, b models.Item, placed, total int) promptModel {
	return promptModel{
		a:      a,
		b:      b,
		placed: placed,
		total:  total,
		progress: progress.New(
			progress.WithDefaultBlend(),
			progress.WithWidth(40),
		),
		theme: defaultTheme,
	}
}

// Init returns no initial command; the prompt waits for keys.
func (m promptModel) Init() tea.Cmd {
	return nil
}

// Update handles key presses.
func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyPressMsg); ok {
		m = m.handleKey(msg.String())
		if m.aborted || m.stage == stageDone {
			return m, tea.Quit
		}
	}
	return m, nil
}

// handleKey advances the prompt. Keys that are not valid answers leave the
// stage unchanged and show the invalid hint.
func (m promptModel) handleKey(key string) promptModel {
	switch key {
	case "ctrl+c", "esc", "q":
		m.aborted = true
		return m
	}

	switch m.stage {
	case stageChoice:
		first, err := oracle.ParseChoice(key)
		if err != nil {
			m.invalid = invalidChoice
			return m
		}
		m.firstChosen = first
		m.stage = stageStrength
		m.invalid = ""

	case stageStrength:
		level, err := oracle.ParseLevel(key)
		if err != nil {
			m.invalid = invalidStrength
			return m
		}
		m.level = level
		m.stage = stageDone
		m.invalid = ""
	}
	return m
}

// View renders the prompt.
func (m promptModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m promptModel) renderContent() string {
	if m.stage == stageDone || m.aborted {
		return ""
	}

	var sb strings.Builder
	if m.total > 0 {
		pct := float64(m.placed) / float64(m.total)
		fmt.Fprintf(&sb, "%s %d/%d placed\n\n", m.progress.ViewAs(pct), m.placed, m.total)
	}

	switch m.stage {
	case stageChoice:
		sb.WriteString(m.theme.titleStyle().Render("Which player do you prefer?") + "\n")
		fmt.Fprintf(&sb, "  1) %s\n  2) %s\n", m.a, m.b)

	case stageStrength:
		chosen := m.a
		if !m.firstChosen {
			chosen = m.b
		}
		sb.WriteString(m.theme.titleStyle().Render("How much do you prefer them?") + "\n")
		sb.WriteString("  " + m.theme.choiceStyle().Render("→ "+chosen.Name) + "\n")
		for _, l := range oracle.Levels {
			fmt.Fprintf(&sb, "  %d) %s\n", l, l.Label())
		}
	}

	if m.invalid != "" {
		sb.WriteString("\n" + m.theme.errorStyle().Render(m.invalid) + "\n")
	}
	sb.WriteString("\n" + m.theme.hintStyle().Render("Press Esc to stop ranking") + "\n")
	return sb.String()
}

// TUIOracle asks each comparison through a small full-screen terminal
// prompt. It implements oracle.Oracle.
type TUIOracle struct {
	in            io.Reader
	out           io.Writer
	placed, total int
}

// NewTUIOracle creates a terminal oracle reading keys from in.
func NewTUIOracle(in io.Reader, out io.Writer) *TUIOracle {
	return &TUIOracle{in: in, out: out}
}

// SetProgress updates the progress bar shown with the next prompt.
func (o *TUIOracle) SetProgress(placed, total int) {
	o.placed, o.total = placed, total
}

// Compare runs the prompt until the user answers both questions or quits.
func (o *TUIOracle) Compare(ctx context.Context, a, b models.Item) (float64, error) {
	p := tea.NewProgram(
		newPromptModel(a, b, o.placed, o.total),
		tea.WithContext(ctx),
		tea.WithInput(o.in),
		tea.WithOutput(o.out),
	)

	finalModel, err := p.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}
	if err != nil {
		return 0, fmt.Errorf("prompt UI error: %w", err)
	}

	m, ok := finalModel.(promptModel)
	if !ok || m.aborted {
		return 0, oracle.ErrAborted
	}
	if m.stage != stageDone {
		return 0, fmt.Errorf("%w: prompt closed before an answer", oracle.ErrInvalidInput)
	}
	return oracle.Signed(m.firstChosen, m.level), nil
}
