package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrInterrupted is returned when the user aborts a prompt
var ErrInterrupted = errors.New("interrupted")

// confirmModel asks a yes/no question and waits for a single key
type confirmModel struct {
	question    string
	answer      bool
	answered    bool
	interrupted bool
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

// Update handles key presses
func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "y", "Y":
		m.answer, m.answered = true, true
		return m, tea.Quit
	case "n", "N", "enter":
		m.answer, m.answered = false, true
		return m, tea.Quit
	case "ctrl+c", "esc", "q":
		m.interrupted = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.answered {
		reply := "no"
		if m.answer {
			reply = "yes"
		}
		return fmt.Sprintf("%s [y/N]: %s\n", m.question, reply)
	}
	if m.interrupted {
		return fmt.Sprintf("%s [y/N]: ^C\n", m.question)
	}
	return fmt.Sprintf("%s [y/N]: ", m.question)
}

// Confirm asks a yes/no question defaulting to no.
// It returns ErrInterrupted on Ctrl+C, Esc, end of input or when ctx is done.
func (c *Console) Confirm(ctx context.Context, question string) (bool, error) {
	if !c.interactive {
		return c.confirmLine(ctx, question)
	}

	p := tea.NewProgram(confirmModel{question: question},
		tea.WithContext(ctx),
		tea.WithInput(c.in),
		tea.WithOutput(c.out),
	)
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrInterrupted) || errors.Is(err, tea.ErrProgramKilled) || ctx.Err() != nil {
			return false, ErrInterrupted
		}
		return false, err
	}

	m := final.(confirmModel)
	if m.interrupted {
		return false, ErrInterrupted
	}
	return m.answer, nil
}

type lineResult struct {
	line string
	err  error
}

func (c *Console) confirmLine(ctx context.Context, question string) (bool, error) {
	fmt.Fprintf(c.out, "%s [y/N]: ", question)
	if c.in == nil {
		fmt.Fprintln(c.out)
		return false, ErrInterrupted
	}

	// the read cannot be cancelled; a reader blocked past ctx is abandoned
	ch := make(chan lineResult, 1)
	go func() {
		line, err := bufio.NewReader(c.in).ReadString('\n')
		ch <- lineResult{line, err}
	}()

	var r lineResult
	select {
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return false, ErrInterrupted
	case r = <-ch:
	}
	if r.err != nil && (r.err != io.EOF || r.line == "") {
		fmt.Fprintln(c.out)
		return false, ErrInterrupted
	}
	return parseAnswer(r.line), nil
}

func parseAnswer(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
