package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_UpdateProgress_OutputFormat(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: updating progress
	r.UpdateProgress(ProgressEvent{Stage: StageIngesting, Current: 3, Total: 8, Source: "docs/intro.md"})

	// Then: output is correctly formatted
	assert.Equal(t, "[INGEST] 3/8 - docs/intro.md\n", buf.String())
}

func TestPlainRenderer_UpdateProgress_MessageWins(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.UpdateProgress(ProgressEvent{Stage: StageReading, Source: "x", Message: "found 4 files"})

	assert.Equal(t, "[READ] found 4 files\n", buf.String())
}

func TestPlainRenderer_UpdateProgress_EmptyEventPrintsNothing(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.UpdateProgress(ProgressEvent{Stage: StageReading})

	assert.Empty(t, buf.String())
}

func TestPlainRenderer_AddError(t *testing.T) {
	tests := []struct {
		name  string
		event ErrorEvent
		want  string
	}{
		{"error with source", ErrorEvent{Source: "a.txt", Err: errors.New("unreadable")}, "ERROR: a.txt: unreadable\n"},
		{"warning with source", ErrorEvent{Source: "b.bin", Err: errors.New("binary"), IsWarn: true}, "WARN: b.bin: binary\n"},
		{"error without source", ErrorEvent{Err: errors.New("store locked")}, "ERROR: store locked\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			r := NewPlainRenderer(NewConfig(buf))

			r.AddError(tt.event)

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPlainRenderer_Complete(t *testing.T) {
	// Given: a summary with errors and an embedder
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: completing
	r.Complete(IngestSummary{
		Sources:  3,
		Chunks:   12,
		Duration: 1500 * time.Millisecond,
		Errors:   1,
		Embedder: EmbedderInfo{Model: "static-hash-256", Dimensions: 256},
	})

	// Then: the summary lines are printed without escape codes
	out := buf.String()
	assert.Contains(t, out, "Complete: 3 sources, 12 chunks stored in 1.5s (1 errors, 0 warnings)")
	assert.Contains(t, out, "Embedder: static-hash-256 (256 dims)")
	assert.NotContains(t, out, "\x1b[")
}

func TestPlainRenderer_StartStop(t *testing.T) {
	r := NewPlainRenderer(NewConfig(&bytes.Buffer{}))

	require.NoError(t, r.Start(context.Background()))
	require.NoError(t, r.Stop())
}

func TestPlainRenderer_ThreadSafe(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.UpdateProgress(ProgressEvent{Stage: StageIngesting, Current: i, Total: 20, Source: "f"})
		}()
		go func() {
			defer wg.Done()
			r.AddError(ErrorEvent{Err: errors.New("e"), IsWarn: true})
		}()
	}
	wg.Wait()

	assert.Equal(t, 40, strings.Count(buf.String(), "\n"))
}
