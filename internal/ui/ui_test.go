package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_StringAndIcon(t *testing.T) {
	tests := []struct {
		stage Stage
		name  string
		icon  string
	}{
		{StageParsing, "Parsing", "PARSE"},
		{StageBuilding, "Building", "BUILD"},
		{StageSearching, "Searching", "SEARCH"},
		{StageWriting, "Writing", "WRITE"},
		{StageEvaluating, "Evaluating", "EVAL"},
		{StageComplete, "Complete", "DONE"},
		{Stage(99), "Unknown", "???"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.stage.String())
			assert.Equal(t, tt.icon, tt.stage.Icon())
		})
	}
}

func TestIsTTY(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
	assert.False(t, IsTTY(nil))
}

func TestNewConfig(t *testing.T) {
	buf := &bytes.Buffer{}

	cfg := NewConfig(buf)
	assert.Equal(t, buf, cfg.Output)
	assert.False(t, cfg.ForcePlain)
	assert.Equal(t, "dots", cfg.SpinnerStyle)

	cfg = NewConfig(buf, WithForcePlain(true), WithNoColor(true), WithWorkspace("/tmp/run"))
	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "/tmp/run", cfg.Workspace)
}

func TestNewRenderer_FallsBackToPlain(t *testing.T) {
	// Given: forced plain and a non-terminal output
	for _, cfg := range []Config{
		NewConfig(&bytes.Buffer{}, WithForcePlain(true)),
		NewConfig(&bytes.Buffer{}),
	} {
		// When: creating a renderer
		r := NewRenderer(cfg)

		// Then: the plain renderer is chosen
		_, ok := r.(*PlainRenderer)
		require.True(t, ok, "expected PlainRenderer")
	}
}

func TestNopRenderer(t *testing.T) {
	var r Renderer = NopRenderer{}

	require.NoError(t, r.Start(t.Context()))
	r.UpdateProgress(ProgressEvent{Stage: StageBuilding})
	r.AddError(ErrorEvent{Err: assert.AnError})
	r.Complete(CompletionStats{})
	assert.NoError(t, r.Stop())
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestDetectCI(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")
	assert.True(t, DetectCI())
}

var (
	_ Renderer = (*PlainRenderer)(nil)
	_ Renderer = NopRenderer{}
)
