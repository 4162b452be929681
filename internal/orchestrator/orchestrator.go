// Package orchestrator runs one submission through the moderation pipeline:
//
//	analyze -> classify -> decide -> [generateVisualization]
//
// Each stage returns a partial update that is merged into the run's
// ModerationState. The visualization stage runs only when the decide stage
// set NeedsVisualization.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/decision"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
	"github.com/tjfontaine/polyglot-moderation-gateway/internal/telemetry"
)

// VisionAnalyzer classifies image references.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, imageURL string) (domain.AnalysisResult, domain.Provider, error)
}

// ContentAnalyzer classifies text content.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, content string, contentType domain.ContentType) (domain.AnalysisResult, domain.Provider)
}

// Visualizer gates and renders reviewer illustrations.
type Visualizer interface {
	ShouldGenerate(ctx context.Context, s domain.ModerationState) bool
	Generate(ctx context.Context, reasoning string) string
}

// Config holds the collaborators of an Orchestrator.
type Config struct {
	Vision     VisionAnalyzer
	Content    ContentAnalyzer
	Visualizer Visualizer
	Publisher  telemetry.Publisher
	Logger     *slog.Logger
	Tracer     trace.Tracer
}

// Orchestrator is immutable after construction and safe for concurrent use;
// every Moderate call works on its own state.
type Orchestrator struct {
	vision     VisionAnalyzer
	content    ContentAnalyzer
	visualizer Visualizer
	publisher  telemetry.Publisher
	logger     *slog.Logger
	tracer     trace.Tracer
}

type stageFunc func(ctx context.Context, s domain.ModerationState) (domain.StateUpdate, error)

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Vision == nil || cfg.Content == nil || cfg.Visualizer == nil {
		return nil, errors.New("orchestrator requires vision, content and visualization components")
	}

	o := &Orchestrator{
		vision:     cfg.Vision,
		content:    cfg.Content,
		visualizer: cfg.Visualizer,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger,
		tracer:     cfg.Tracer,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.publisher == nil {
		o.publisher = telemetry.NewSpanPublisher(o.logger)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(telemetry.TracerName)
	}
	return o, nil
}

// Moderate runs content through the pipeline. Any stage error aborts the
// run and is returned together with the state reached so far.
func (o *Orchestrator) Moderate(ctx context.Context, content string, contentType domain.ContentType) (domain.ModerationState, error) {
	ctx, span := o.tracer.Start(ctx, "moderation.pipeline", trace.WithAttributes(
		attribute.String("content_type", string(contentType)),
	))
	defer span.End()

	state := domain.ModerationState{Content: content, ContentType: contentType}

	for _, step := range []struct {
		stage Stage
		run   stageFunc
	}{
		{StageAnalyze, o.analyze},
		{StageClassify, o.classify},
		{StageDecide, o.decide},
	} {
		var err error
		if state, err = o.runStage(ctx, step.stage, state, step.run); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return state, err
		}
	}

	if state.NeedsVisualization != nil && *state.NeedsVisualization {
		var err error
		if state, err = o.runStage(ctx, StageVisualize, state, o.visualize); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return state, err
		}
	}

	span.SetAttributes(
		attribute.String("decision", string(state.Decision)),
		attribute.String("provider", string(state.AIProvider)),
	)
	return state, nil
}

// runStage executes one stage in its own span and merges its update. A
// panic inside the stage is returned as an error.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, s domain.ModerationState, run stageFunc) (next domain.ModerationState, err error) {
	ctx, span := o.tracer.Start(ctx, stage.SpanName())
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: stage panicked: %v", stage, r)
			next = s
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			o.logger.ErrorContext(ctx, "moderation stage failed",
				slog.String("stage", string(stage)),
				slog.String("error", err.Error()),
			)
		}
	}()

	update, err := run(ctx, s)
	if err != nil {
		return s, fmt.Errorf("%s: %w", stage, err)
	}
	return s.Apply(update), nil
}

func (o *Orchestrator) analyze(ctx context.Context, s domain.ModerationState) (domain.StateUpdate, error) {
	var (
		result   domain.AnalysisResult
		provider domain.Provider
	)

	analyzed := false
	if s.ContentType == domain.ContentTypeImage {
		var err error
		result, provider, err = o.vision.Analyze(ctx, s.Content)
		switch {
		case err == nil:
			analyzed = true
		case errors.Is(err, domain.ErrUnsupportedImage):
			o.logger.InfoContext(ctx, "image reference not analyzable by vision, using text analysis",
				slog.String("error", err.Error()),
			)
		default:
			return domain.StateUpdate{}, err
		}
	}
	if !analyzed {
		result, provider = o.content.Analyze(ctx, s.Content, s.ContentType)
	}

	o.publisher.Publish(ctx, telemetry.Event{
		Name: telemetry.EventAnalysisCompleted,
		Attributes: []attribute.KeyValue{
			attribute.String("provider", string(provider)),
			attribute.Bool("isSafe", result.IsSafe),
			attribute.String("severity", string(result.Severity)),
		},
	})

	return domain.StateUpdate{AnalysisResult: &result, AIProvider: provider}, nil
}

func (o *Orchestrator) classify(_ context.Context, s domain.ModerationState) (domain.StateUpdate, error) {
	if s.AnalysisResult == nil {
		return domain.StateUpdate{}, fmt.Errorf("%w: classify requires an analysis result", domain.ErrPrecondition)
	}
	return domain.StateUpdate{Classification: decision.Classify(*s.AnalysisResult)}, nil
}

func (o *Orchestrator) decide(ctx context.Context, s domain.ModerationState) (domain.StateUpdate, error) {
	switch {
	case s.Classification == "":
		return domain.StateUpdate{}, fmt.Errorf("%w: decide requires a classification", domain.ErrPrecondition)
	case s.AnalysisResult == nil:
		return domain.StateUpdate{}, fmt.Errorf("%w: decide requires an analysis result", domain.ErrPrecondition)
	case s.AIProvider == "":
		return domain.StateUpdate{}, fmt.Errorf("%w: decide requires a provider", domain.ErrPrecondition)
	}

	d, reasoning := decision.Decide(s.Classification, *s.AnalysisResult, s.AIProvider)
	o.publisher.Publish(ctx, telemetry.Event{
		Name:       telemetry.EventDecisionMade,
		Attributes: []attribute.KeyValue{attribute.String("decision", string(d))},
	})

	needs := false
	if s.Classification == domain.ClassificationFlagged {
		needs = o.visualizer.ShouldGenerate(ctx, s)
	}
	o.publisher.Publish(ctx, telemetry.Event{
		Name:       telemetry.EventVisualizationDecided,
		Attributes: []attribute.KeyValue{attribute.Bool("shouldGenerate", needs)},
	})

	return domain.StateUpdate{
		Decision:           d,
		Reasoning:          reasoning,
		NeedsVisualization: domain.Bool(needs),
	}, nil
}

func (o *Orchestrator) visualize(ctx context.Context, s domain.ModerationState) (domain.StateUpdate, error) {
	if s.Reasoning == "" {
		return domain.StateUpdate{}, fmt.Errorf("%w: generateVisualization requires reasoning", domain.ErrPrecondition)
	}
	return domain.StateUpdate{VisualizationURL: o.visualizer.Generate(ctx, s.Reasoning)}, nil
}
