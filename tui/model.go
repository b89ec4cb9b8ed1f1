package tui

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// statusMsg replaces the spinner's detail line
type statusMsg string

// doneMsg stops the spinner
type doneMsg struct{}

// statusModel shows a spinner with a title and the most recent detail line
type statusModel struct {
	spinner spinner.Model
	title   string
	detail  string
	done    bool
}

func newStatusModel(title string) statusModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return statusModel{spinner: s, title: title}
}

func (m statusModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m statusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusMsg:
		m.detail = string(msg)
		return m, nil
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m statusModel) View() string {
	if m.done {
		return ""
	}
	line := fmt.Sprintf("%s %s", m.spinner.View(), m.title)
	if m.detail != "" {
		line += "\n  " + m.detail
	}
	return line + "\n"
}

// Status runs fn while a spinner shows title. fn may report progress through update.
// Off a terminal the title and each update are printed as dimmed lines instead.
func (c *Console) Status(ctx context.Context, title string, fn func(ctx context.Context, update func(string)) error) error {
	if !c.interactive {
		c.Dim("⏳ " + title)
		var mu sync.Mutex
		return fn(ctx, func(s string) {
			mu.Lock()
			defer mu.Unlock()
			c.Dim("   " + s)
		})
	}

	p := tea.NewProgram(newStatusModel(title),
		tea.WithOutput(c.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
		tea.WithContext(ctx),
	)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		p.Run()
	}()

	err := fn(ctx, func(s string) { p.Send(statusMsg(s)) })

	p.Send(doneMsg{})
	<-finished
	return err
}
