package viz

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/pidtune/internal/storage"
	"github.com/san-kum/pidtune/internal/tuner"
)

const historyCapacity = 600

type (
	TrialMsg tuner.Trial
	DoneMsg  struct {
		Outcome *tuner.Outcome
		Err     error
	}
	TickMsg time.Time
)

// Feed carries trials from a tuner session to a Model. OnTrial blocks until
// the UI has taken the trial or the feed is closed, so a closed UI never
// stalls the search.
type Feed struct {
	msgs chan tea.Msg
	done chan struct{}
	once sync.Once
}

func NewFeed() *Feed {
	return &Feed{
		msgs: make(chan tea.Msg, 64),
		done: make(chan struct{}),
	}
}

func (f *Feed) OnTrial(t tuner.Trial) { f.send(TrialMsg(t)) }

// Finish reports the end of the search.
func (f *Feed) Finish(out *tuner.Outcome, err error) { f.send(DoneMsg{Outcome: out, Err: err}) }

func (f *Feed) Close() { f.once.Do(func() { close(f.done) }) }

func (f *Feed) send(msg tea.Msg) {
	select {
	case f.msgs <- msg:
	case <-f.done:
	}
}

func (f *Feed) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-f.msgs:
			return msg
		case <-f.done:
			return nil
		}
	}
}

var _ tuner.Observer = (*Feed)(nil)

// Model is the live tuning dashboard.
type Model struct {
	feed   *Feed
	stop   func()
	title  string
	theme  int
	styles styles
	frozen bool
	frame  int

	trials  []storage.Trial
	gains   [3][]float64
	last    tuner.Trial
	outcome *tuner.Outcome
	err     error
	done    bool
}

// NewModel builds a dashboard reading from feed. stop is called when the user
// quits so the caller can cancel the search.
func NewModel(feed *Feed, title string, stop func()) Model {
	return Model{
		feed:   feed,
		stop:   stop,
		title:  title,
		styles: newStyles(Themes[0]),
		trials: make([]storage.Trial, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.feed.wait(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.stop != nil {
				m.stop()
			}
			m.feed.Close()
			return m, tea.Quit
		case " ":
			m.frozen = !m.frozen
		case "t":
			m.theme = (m.theme + 1) % len(Themes)
			m.styles = newStyles(Themes[m.theme])
		}
		return m, nil

	case TrialMsg:
		if !m.frozen {
			m.record(tuner.Trial(msg))
		}
		return m, m.feed.wait()

	case DoneMsg:
		m.done = true
		m.outcome = msg.Outcome
		m.err = msg.Err
		return m, nil

	case TickMsg:
		m.frame++
		if m.done {
			return m, nil
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) record(t tuner.Trial) {
	m.last = t
	m.trials = append(m.trials, t.Record())
	if len(m.trials) > historyCapacity {
		m.trials = m.trials[len(m.trials)-historyCapacity:]
	}
	for i := range m.gains {
		if i < len(t.Gains) {
			m.gains[i] = append(m.gains[i], t.Gains[i])
			if len(m.gains[i]) > historyCapacity {
				m.gains[i] = m.gains[i][1:]
			}
		}
	}
}

func (m Model) View() string {
	st := m.styles
	var s strings.Builder

	s.WriteString(st.header.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	if chart := PlotErrors(m.trials, 50, 8, "log10 error"); chart != "" {
		s.WriteString(st.graph.Render(chart) + "\n")
	}

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Trial", fmt.Sprintf("%d", m.last.N))
	row("Phase", m.last.Phase)
	row("Gains", m.last.Gains.String())
	row("Error", fmt.Sprintf("%.6g", m.last.Error))
	row("Best", fmt.Sprintf("%.6g", m.last.BestError))
	row("Progress", fmt.Sprintf("%.4g", m.last.Progress))
	if m.last.Result != nil {
		row("Episode", fmt.Sprintf("%d steps, %.3f mi, %s", m.last.Result.Steps, m.last.Result.Distance, m.last.Result.Reason))
	}

	s.WriteString("\n")
	for i, name := range []string{"kp", "ki", "kd"} {
		s.WriteString(st.label.Render(name) + st.muted.Render(SparklineChart(m.gains[i], 40)) + "\n")
	}

	if m.done && m.outcome != nil {
		s.WriteString("\n" + st.label.Render("Result") + st.good.Render(m.outcome.Gains.String()) + "\n")
	}

	s.WriteString(st.keyHint.Render(fmt.Sprintf("SP:Freeze  T:Theme (%s)  Q:Quit", Themes[m.theme].Name)))
	return lipgloss.JoinVertical(lipgloss.Left, st.panel.Render(s.String()))
}

func (m Model) status() string {
	st := m.styles
	switch {
	case m.done && m.err != nil:
		return st.bad.Render("STOPPED: " + m.err.Error())
	case m.done && m.outcome != nil && m.outcome.Converged:
		return st.good.Render(fmt.Sprintf("CONVERGED after %d trials", m.outcome.Trials))
	case m.done:
		return st.warn.Render("FINISHED")
	case m.frozen:
		return st.warn.Render("FROZEN")
	default:
		return st.good.Render(AnimatedSpinner(m.frame) + " TUNING " + string(m.last.Strategy) + " " + string(m.last.Target))
	}
}
