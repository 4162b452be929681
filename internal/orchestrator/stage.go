package orchestrator

// Stage names a step of the moderation pipeline.
type Stage string

const (
	StageAnalyze   Stage = "analyze"
	StageClassify  Stage = "classify"
	StageDecide    Stage = "decide"
	StageVisualize Stage = "generateVisualization"
)

// SpanName is the tracing span name for the stage.
func (s Stage) SpanName() string {
	return "moderation." + string(s)
}
