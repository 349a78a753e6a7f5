package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStage_String(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageReading, "Reading"},
		{StageIngesting, "Ingesting"},
		{StageComplete, "Complete"},
		{Stage(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stage.String())
		})
	}
}

func TestStage_Icon(t *testing.T) {
	assert.Equal(t, "READ", StageReading.Icon())
	assert.Equal(t, "INGEST", StageIngesting.Icon())
	assert.Equal(t, "DONE", StageComplete.Icon())
	assert.Equal(t, "???", Stage(-1).Icon())
}

func TestIsTTY_WithBuffer_ReturnsFalse(t *testing.T) {
	// Given: a bytes buffer (not a TTY)
	buf := &bytes.Buffer{}

	// Then: IsTTY reports false
	assert.False(t, IsTTY(buf))
}

func TestIsTTY_WithNil_ReturnsFalse(t *testing.T) {
	assert.False(t, IsTTY(nil))
}

func TestNewConfig_WithOptions(t *testing.T) {
	// Given: options
	buf := &bytes.Buffer{}

	// When: building config
	cfg := NewConfig(buf, WithForcePlain(true), WithNoColor(true), WithStoragePath("/data/rag"))

	// Then: every option is applied
	assert.Same(t, buf, cfg.Output)
	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "/data/rag", cfg.StoragePath)
}

func TestNewRenderer_ForcePlain_ReturnsPlainRenderer(t *testing.T) {
	r := NewRenderer(NewConfig(&bytes.Buffer{}, WithForcePlain(true)))

	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestNewRenderer_NonTTY_ReturnsPlainRenderer(t *testing.T) {
	// Given: a non-TTY output without forcing plain mode
	r := NewRenderer(NewConfig(&bytes.Buffer{}))

	// Then: plain renderer is chosen
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestDetectNoColor(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")
		assert.True(t, DetectNoColor())
	})
	t.Run("empty value still counts", func(t *testing.T) {
		t.Setenv("NO_COLOR", "")
		assert.True(t, DetectNoColor())
	})
}

func TestDetectCI_WithEnv(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")
	assert.True(t, DetectCI())
}

func TestGetStyles_NoColorRendersPlainText(t *testing.T) {
	// Given: no-color styles
	styles := GetStyles(true)

	// Then: rendering adds no escape codes
	assert.Equal(t, "header", styles.Header.Render("header"))
	assert.Equal(t, "warn", styles.Warning.Render("warn"))
}

func TestDefaultStyles_HeaderIsBold(t *testing.T) {
	assert.True(t, DefaultStyles().Header.GetBold())
}
