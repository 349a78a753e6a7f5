package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestNewTUIRenderer_FailsForNonTTY(t *testing.T) {
	// Given: a non-TTY buffer
	cfg := NewConfig(&bytes.Buffer{})

	// When: creating TUI renderer
	r, err := NewTUIRenderer(cfg)

	// Then: creation fails
	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestIngestModel_InitialView_ShowsStages(t *testing.T) {
	model := newIngestModel(NewProgressTracker(), "/data/rag")

	view := model.View()

	assert.Contains(t, view, "Reading")
	assert.Contains(t, view, "Ingesting")
	assert.Contains(t, view, "/data/rag")
}

func TestIngestModel_ProgressDisplay(t *testing.T) {
	// Given: a tracker half way through ingest
	tracker := NewProgressTracker()
	tracker.SetStage(StageIngesting, 10)
	tracker.Update(5, 42, "notes/today.md")
	model := newIngestModel(tracker, "")

	// When: rendering
	view := model.View()

	// Then: counts, percentage and source are visible
	assert.Contains(t, view, "5 / 10 sources · 42 chunks")
	assert.Contains(t, view, "50%")
	assert.Contains(t, view, "notes/today.md")
}

func TestIngestModel_ErrorDisplay(t *testing.T) {
	tracker := NewProgressTracker()
	tracker.AddError(ErrorEvent{Source: "a", Err: errors.New("x")})
	tracker.AddError(ErrorEvent{Source: "b", Err: errors.New("y"), IsWarn: true})
	model := newIngestModel(tracker, "")
	model.styles = NoColorStyles()

	view := model.View()

	assert.Contains(t, view, "1 errors")
	assert.Contains(t, view, "1 warnings")
}

func TestIngestModel_CompleteMsg_QuitsWithSummary(t *testing.T) {
	// Given: a model
	model := newIngestModel(NewProgressTracker(), "")

	// When: the completion message arrives
	next, cmd := model.Update(completeMsg(IngestSummary{Sources: 2, Chunks: 7, Duration: 3 * time.Second}))

	// Then: the model quits and shows the summary
	assert.NotNil(t, cmd)
	view := next.View()
	assert.Contains(t, view, "Ingest complete")
	assert.Contains(t, view, "7")
	assert.Contains(t, view, "3s")
}

func TestIngestModel_QuitKey(t *testing.T) {
	model := newIngestModel(NewProgressTracker(), "")

	next, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	assert.NotNil(t, cmd)
	assert.Equal(t, "Cancelled.\n", next.View())
}

func TestIngestModel_WindowResize_ClampsBar(t *testing.T) {
	model := newIngestModel(NewProgressTracker(), "")

	model.Update(tea.WindowSizeMsg{Width: 30, Height: 10})

	assert.Equal(t, 30, model.width)
	assert.Equal(t, 20, model.progressBar.Width)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{42 * time.Second, "42s"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
		{90 * time.Minute, "1h 30m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.in))
		})
	}
}

func TestTruncateLeft(t *testing.T) {
	assert.Equal(t, "short", truncateLeft("short", 10))
	assert.Equal(t, "...ef", truncateLeft("abcdef", 5))
	assert.Equal(t, "...", truncateLeft("abcdef", 2))
}
