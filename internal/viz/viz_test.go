package viz

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/pidtune/internal/dynamo"
	"github.com/san-kum/pidtune/internal/episode"
	"github.com/san-kum/pidtune/internal/storage"
	"github.com/san-kum/pidtune/internal/tuner"
)

func TestSparklineChart(t *testing.T) {
	if got := SparklineChart(nil, 5); got != "─────" {
		t.Errorf("empty sparkline = %q", got)
	}
	if got := SparklineChart([]float64{0, 1, 2, 3, 4, 5, 6, 7}, 8); got != "▁▂▃▄▅▆▇█" {
		t.Errorf("ramp = %q", got)
	}
	if got := []rune(SparklineChart([]float64{1, 2, 3, 4, 5}, 3)); len(got) != 3 || got[2] != '█' {
		t.Errorf("sparkline should keep the last values, got %q", string(got))
	}
}

func TestProgressBar(t *testing.T) {
	if got := ProgressBar(0.5, 4); got != "██░░" {
		t.Errorf("half bar = %q", got)
	}
	if got := ProgressBar(2, 3); got != "███" {
		t.Errorf("overfull bar = %q", got)
	}
}

func TestGetTheme(t *testing.T) {
	if GetTheme("ocean").Name != "ocean" {
		t.Error("ocean theme not found")
	}
	if GetTheme("nope").Name != Themes[0].Name {
		t.Error("unknown theme should fall back to the first")
	}
	if len(ThemeNames()) != len(Themes) {
		t.Error("theme names out of sync")
	}
}

func TestPlotErrors(t *testing.T) {
	if PlotErrors(nil, 20, 5, "x") != "" {
		t.Error("empty history should not plot")
	}
	trials := []storage.Trial{
		{N: 1, Error: 0.1, BestError: 0.1},
		{N: 2, Error: 1e9, BestError: 0.1},
		{N: 3, Error: 0.01, BestError: 0.01},
	}
	out := PlotErrors(trials, 20, 5, "errors")
	if !strings.Contains(out, "errors") {
		t.Errorf("caption missing from plot:\n%s", out)
	}
	if PlotErrors(trials[:1], 20, 5, "one") == "" {
		t.Error("a single trial should still plot")
	}
}

func TestModelUpdate(t *testing.T) {
	feed := NewFeed()
	stopped := false
	m := NewModel(feed, "steer", func() { stopped = true })

	trial := tuner.Trial{
		N:         1,
		Strategy:  tuner.Twiddle,
		Target:    tuner.Steer,
		Phase:     "initialize",
		Gains:     dynamo.Vector{0.2, 0.004, 3},
		Error:     0.05,
		BestError: 0.05,
		Result:    &episode.Result{Steps: 100, Reason: episode.StopDistance},
	}
	next, cmd := m.Update(TrialMsg(trial))
	if cmd == nil {
		t.Error("model should keep reading the feed")
	}
	m = next.(Model)
	if len(m.trials) != 1 || m.gains[2][0] != 3 {
		t.Fatalf("trial not recorded: %+v", m.trials)
	}
	if view := m.View(); !strings.Contains(view, "initialize") || !strings.Contains(view, "STEER") {
		t.Errorf("view missing trial details:\n%s", view)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	m = next.(Model)
	next, _ = m.Update(TrialMsg(trial))
	m = next.(Model)
	if len(m.trials) != 1 {
		t.Error("frozen model should ignore trials")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'t'}})
	m = next.(Model)
	if m.theme != 1 {
		t.Errorf("theme = %d, want 1", m.theme)
	}

	next, _ = m.Update(DoneMsg{Outcome: &tuner.Outcome{Gains: dynamo.Vector{1, 2, 3}, Trials: 9, Converged: true}})
	m = next.(Model)
	if !strings.Contains(m.View(), "CONVERGED after 9 trials") {
		t.Error("converged status missing")
	}

	next, _ = m.Update(DoneMsg{Err: errors.New("trial limit")})
	m = next.(Model)
	if !strings.Contains(m.View(), "STOPPED: trial limit") {
		t.Error("stopped status missing")
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if !stopped {
		t.Error("quit should stop the search")
	}
	if cmd == nil {
		t.Error("quit should return tea.Quit")
	}
	feed.OnTrial(trial)
}

func TestFeedDelivers(t *testing.T) {
	feed := NewFeed()
	go feed.OnTrial(tuner.Trial{N: 7})

	msg := feed.wait()()
	tr, ok := msg.(TrialMsg)
	if !ok || tr.N != 7 {
		t.Fatalf("unexpected message %#v", msg)
	}

	feed.Close()
	if msg := feed.wait()(); msg != nil {
		t.Errorf("closed feed returned %#v", msg)
	}
	feed.Finish(nil, nil)
}
