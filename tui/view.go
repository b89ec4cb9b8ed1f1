// Package tui renders terminal output: styled lines, panels, tables, spinners and prompts.
package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hochfrequenz/multi-engineer/internal/domain"
	"github.com/mattn/go-isatty"
)

// Palette shared by every style
const (
	ColorTitle   = lipgloss.Color("205")
	ColorBlue    = lipgloss.Color("39")
	ColorGreen   = lipgloss.Color("42")
	ColorPurple  = lipgloss.Color("141")
	ColorYellow  = lipgloss.Color("214")
	ColorRed     = lipgloss.Color("196")
	ColorCyan    = lipgloss.Color("51")
	ColorDimmed  = lipgloss.Color("240")
	ColorBorder  = lipgloss.Color("240")
	ColorDefault = lipgloss.Color("255")
)

// ColorByName maps the agent color names to palette entries
func ColorByName(name string) lipgloss.Color {
	switch name {
	case "blue":
		return ColorBlue
	case "green":
		return ColorGreen
	case "purple":
		return ColorPurple
	case "yellow":
		return ColorYellow
	case "red":
		return ColorRed
	case "cyan":
		return ColorCyan
	default:
		return ColorDefault
	}
}

// Console writes styled output to one writer
type Console struct {
	out         io.Writer
	in          io.Reader
	renderer    *lipgloss.Renderer
	interactive bool

	titleStyle   lipgloss.Style
	successStyle lipgloss.Style
	warningStyle lipgloss.Style
	errorStyle   lipgloss.Style
	infoStyle    lipgloss.Style
	dimmedStyle  lipgloss.Style
}

// New creates a console. Spinners and key-driven prompts are used only
// when both out and in are terminals.
func New(out io.Writer, in io.Reader) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:          out,
		in:           in,
		renderer:     r,
		interactive:  isTerminal(out) && isTerminal(in),
		titleStyle:   r.NewStyle().Bold(true).Foreground(ColorTitle),
		successStyle: r.NewStyle().Foreground(ColorGreen),
		warningStyle: r.NewStyle().Foreground(ColorYellow),
		errorStyle:   r.NewStyle().Foreground(ColorRed),
		infoStyle:    r.NewStyle().Bold(true).Foreground(ColorCyan),
		dimmedStyle:  r.NewStyle().Foreground(ColorDimmed),
	}
}

func isTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Interactive reports whether spinners and key prompts are enabled
func (c *Console) Interactive() bool {
	return c.interactive
}

// Println writes a plain line
func (c *Console) Println(a ...interface{}) {
	fmt.Fprintln(c.out, a...)
}

// Printf writes formatted plain text
func (c *Console) Printf(format string, a ...interface{}) {
	fmt.Fprintf(c.out, format, a...)
}

// Title writes a bold headline
func (c *Console) Title(msg string) {
	fmt.Fprintln(c.out, c.titleStyle.Render(msg))
}

// Info writes a highlighted section line
func (c *Console) Info(msg string) {
	fmt.Fprintln(c.out, c.infoStyle.Render(msg))
}

// Success writes a green line
func (c *Console) Success(msg string) {
	fmt.Fprintln(c.out, c.successStyle.Render("✅ "+msg))
}

// Warn writes a yellow line
func (c *Console) Warn(msg string) {
	fmt.Fprintln(c.out, c.warningStyle.Render("⚠️  "+msg))
}

// Error writes a red line
func (c *Console) Error(msg string) {
	fmt.Fprintln(c.out, c.errorStyle.Render("❌ "+msg))
}

// Dim writes a low-contrast line
func (c *Console) Dim(msg string) {
	fmt.Fprintln(c.out, c.dimmedStyle.Render(msg))
}

// Rule writes a horizontal separator
func (c *Console) Rule() {
	fmt.Fprintln(c.out, c.dimmedStyle.Render(strings.Repeat("=", 80)))
}

// AgentHeader announces that an agent starts working
func (c *Console) AgentHeader(agent domain.AIAgent, action string) {
	style := c.renderer.NewStyle().Bold(true).Foreground(ColorByName(agent.Color))
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, style.Render(fmt.Sprintf("%s %s: %s", agent.Emoji, agent.Name, action)))
}

// AgentMessage prints what an agent said
func (c *Console) AgentMessage(agent domain.AIAgent, text string) {
	label := c.renderer.NewStyle().Bold(true).Foreground(ColorByName(agent.Color)).
		Render(fmt.Sprintf("%s %s:", agent.Emoji, agent.Name))
	fmt.Fprintf(c.out, "%s %s\n", label, text)
}

// Panel renders body inside a rounded border with a colored title line
func (c *Console) Panel(title, body string, color lipgloss.Color) {
	heading := c.renderer.NewStyle().Bold(true).Foreground(color).Render(title)
	box := c.renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Render(heading + "\n" + body)
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, box)
}

// Table renders rows under headers with a rounded border
func (c *Console) Table(title string, headers []string, rows [][]string) {
	headerStyle := c.renderer.NewStyle().Bold(true).Foreground(ColorTitle).Padding(0, 1)
	cellStyle := c.renderer.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(c.renderer.NewStyle().Foreground(ColorBorder)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	if title != "" {
		fmt.Fprintln(c.out, c.titleStyle.Render(title))
	}
	fmt.Fprintln(c.out, t.Render())
}

// Cyan highlights an inline value such as a branch or command
func (c *Console) Cyan(s string) string {
	return c.renderer.NewStyle().Foreground(ColorCyan).Render(s)
}

// Green highlights an inline path
func (c *Console) Green(s string) string {
	return c.renderer.NewStyle().Foreground(ColorGreen).Render(s)
}

// Bold emphasizes inline text
func (c *Console) Bold(s string) string {
	return c.renderer.NewStyle().Bold(true).Render(s)
}
