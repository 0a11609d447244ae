// Package pipeline orchestrates one conversation turn: intake, the parallel
// analysis/enrichment stage, response composition, and the critic loop.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medassist/vha/internal/compose"
	"github.com/medassist/vha/internal/config"
	"github.com/medassist/vha/internal/critic"
	"github.com/medassist/vha/internal/fhir"
	"github.com/medassist/vha/internal/intake"
	"github.com/medassist/vha/internal/logging"
	"github.com/medassist/vha/internal/model"
	"github.com/medassist/vha/internal/session"
)

// Analyzer produces the urgency analysis for an intake record.
type Analyzer interface {
	Analyze(ctx context.Context, rec model.IntakeRecord) (model.AnalysisResult, error)
}

// ContextFetcher retrieves external patient context, degrading to empty on
// failure or timeout.
type ContextFetcher interface {
	Fetch(ctx context.Context, patientID string) model.ExternalContext
}

// Pipeline wires the stages together and owns per-session turn ordering.
type Pipeline struct {
	normalizer *intake.Normalizer
	analyzer   Analyzer
	fetcher    ContextFetcher
	composer   *compose.Composer
	loop       *critic.Loop
	store      session.Store
	locks      *session.KeyedMutex
	budget     time.Duration
	logger     zerolog.Logger
}

// New assembles a Pipeline from its stages.
func New(cfg config.PipelineConfig, normalizer *intake.Normalizer, analyzer Analyzer,
	fetcher ContextFetcher, composer *compose.Composer, loop *critic.Loop, store session.Store) *Pipeline {
	return &Pipeline{
		normalizer: normalizer,
		analyzer:   analyzer,
		fetcher:    fetcher,
		composer:   composer,
		loop:       loop,
		store:      store,
		locks:      session.NewKeyedMutex(),
		budget:     cfg.TurnBudget(),
		logger:     logging.Component("pipeline"),
	}
}

// Build constructs the standard pipeline for the given configuration and
// session store. The mock provider uses the keyword extractor; gemini requires
// its API key in the configured environment variable.
func Build(ctx context.Context, cfg config.Config, store session.Store) (*Pipeline, error) {
	gen, err := buildGenerator(ctx, cfg.Model)
	if err != nil {
		return nil, err
	}

	index, err := guidelineIndex()
	if err != nil {
		return nil, err
	}

	source := fhir.NewMockStore()
	normalizer := intake.NewNormalizer(gen)
	analyzer := triageEngine(cfg.Pipeline)
	fetcher := fhir.NewRetriever(source, cfg.Pipeline.ContextTimeout())
	composer := compose.NewComposer(index, source)
	loop := critic.NewLoop(critic.NewEvaluator(), critic.NewRefiner(),
		cfg.Pipeline.AcceptThreshold, cfg.Pipeline.MaxIterations)

	return New(cfg.Pipeline, normalizer, analyzer, fetcher, composer, loop, store), nil
}

// HandleTurn runs one full conversation turn. Turns for the same session are
// serialized in arrival order; turns for different sessions run concurrently.
// The returned payload is always usable by the front-end, even when a stage
// failed.
func (p *Pipeline) HandleTurn(ctx context.Context, sessionID, utterance string) (model.Payload, error) {
	unlock := p.locks.Lock(sessionID)
	defer unlock()

	start := time.Now()

	payload, rec := p.runTurn(ctx, sessionID, utterance, start)

	if err := p.store.Append(ctx, sessionID, rec); err != nil {
		p.logger.Error().Err(err).Str("session_id", sessionID).Msg("failed to persist turn")
		return payload, fmt.Errorf("persist turn: %w", err)
	}

	p.logger.Info().
		Str("session_id", sessionID).
		Str("triage_level", string(payload.TriageLevel)).
		Int("urgency_score", payload.UrgencyScore).
		Int("critic_score", payload.Meta.CriticScore).
		Int("iterations", payload.Meta.Iterations).
		Int64("latency_ms", payload.Meta.LatencyMS).
		Bool("unresolved", payload.Meta.Unresolved).
		Msg("turn completed")

	return payload, nil
}

func (p *Pipeline) runTurn(ctx context.Context, sessionID, utterance string, start time.Time) (payload model.Payload, record model.TurnRecord) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Str("session_id", sessionID).Msg("turn panicked, returning failure response")
			payload, record = failureFallback(sessionID, utterance, start, fmt.Sprintf("turn panicked: %v", r))
		}
	}()

	// The whole turn shares one deadline anchored at arrival, so stage
	// overruns eat into the critic loop's budget rather than extending it.
	turnCtx, cancel := context.WithDeadline(ctx, start.Add(p.budget))
	defer cancel()

	prior := p.priorTurn(turnCtx, sessionID)

	rec := p.normalizer.Normalize(turnCtx, utterance, prior)
	turn := p.gatherContext(turnCtx, rec)

	draft := p.composer.Compose(turnCtx, rec, turn)
	outcome := p.loop.Run(turnCtx, draft, turn)

	latency := time.Since(start).Milliseconds()
	payload = assemblePayload(sessionID, turn, outcome, latency)
	record = buildRecord(utterance, rec, turn, outcome, payload, start)
	return payload, record
}

// failureFallback is the response for an unrecoverable turn failure: instruct
// the user to seek care and retry, and log the turn with an error marker so it
// still appears in session history.
func failureFallback(sessionID, utterance string, start time.Time, reason string) (model.Payload, model.TurnRecord) {
	latency := time.Since(start).Milliseconds()
	payload := model.Payload{
		Message: "I'm sorry, something went wrong while processing your message. " +
			"Out of caution, if your symptoms feel severe or are getting worse, please seek medical care right away. " +
			"Otherwise, please try sending your message again.",
		TriageLevel:  model.TriageHigh,
		UrgencyScore: 9,
		RedFlags:     []string{},
		Reasoning:    []string{},
		Citations:    []string{},
		SessionID:    sessionID,
		Error:        "processing_failure",
		Meta: model.Meta{
			LatencyMS:  latency,
			Unresolved: true,
		},
	}
	record := model.TurnRecord{
		Timestamp:     start.UTC(),
		UserInput:     utterance,
		FinalResponse: payload.Message,
		TriageLevel:   payload.TriageLevel,
		UrgencyScore:  payload.UrgencyScore,
		LatencyMS:     latency,
		Error:         reason,
	}
	return payload, record
}

// gatherContext runs urgency analysis and external-context retrieval
// concurrently and joins their results. Neither branch can sink the turn: the
// retriever degrades to empty context on its own, and an analysis failure or
// panic yields the fail-safe high-urgency result.
func (p *Pipeline) gatherContext(ctx context.Context, rec model.IntakeRecord) model.TurnContext {
	var (
		wg       sync.WaitGroup
		analysis model.AnalysisResult
		external model.ExternalContext
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		analysis = p.analyze(ctx, rec)
	}()
	go func() {
		defer wg.Done()
		external = p.fetcher.Fetch(ctx, rec.PatientID)
	}()
	wg.Wait()

	return model.TurnContext{Analysis: analysis, External: external}
}

func (p *Pipeline) analyze(ctx context.Context, rec model.IntakeRecord) (result model.AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("analysis panicked, applying fail-safe")
			result = failSafeAnalysis()
		}
	}()

	result, err := p.analyzer.Analyze(ctx, rec)
	if err != nil {
		p.logger.Error().Err(err).Msg("analysis failed, applying fail-safe")
		return failSafeAnalysis()
	}
	return result
}

// failSafeAnalysis is the degraded result when urgency reasoning is
// unavailable: escalate rather than guess low.
func failSafeAnalysis() model.AnalysisResult {
	return model.AnalysisResult{
		UrgencyScore: 9,
		TriageLevel:  model.TriageHigh,
		RedFlags:     []string{model.RedFlagReasoningUnavailable},
		Reasons:      []string{"Urgency analysis was unavailable, so out of caution this is treated as high urgency"},
	}
}

func (p *Pipeline) priorTurn(ctx context.Context, sessionID string) *model.TurnRecord {
	state, err := p.store.Get(ctx, sessionID)
	if err != nil {
		p.logger.Warn().Err(err).Str("session_id", sessionID).Msg("history unavailable, treating turn as first")
		return nil
	}
	if len(state.History) == 0 {
		return nil
	}
	last := state.History[len(state.History)-1]
	return &last
}

func assemblePayload(sessionID string, turn model.TurnContext, outcome critic.Outcome, latencyMS int64) model.Payload {
	final := outcome.Final
	return model.Payload{
		Message:      final.Message,
		TriageLevel:  final.TriageLevel,
		UrgencyScore: final.UrgencyScore,
		RedFlags:     append([]string{}, final.RedFlags...),
		Reasoning:    append([]string{}, turn.Analysis.Reasons...),
		Citations:    append([]string{}, final.Citations...),
		Schedule:     final.Schedule,
		SessionID:    sessionID,
		Meta: model.Meta{
			CriticScore: outcome.Verdict.Score,
			LatencyMS:   latencyMS,
			Iterations:  outcome.Iterations,
			Unresolved:  outcome.Unresolved,
		},
	}
}

func buildRecord(utterance string, rec model.IntakeRecord, turn model.TurnContext,
	outcome critic.Outcome, payload model.Payload, start time.Time) model.TurnRecord {
	outputs := make([]json.RawMessage, 0, 3+len(outcome.Candidates))
	outputs = appendOutput(outputs, "intake", rec)
	outputs = appendOutput(outputs, "analysis", turn.Analysis)
	outputs = appendOutput(outputs, "external_context", turn.External)
	for i, cand := range outcome.Candidates {
		outputs = appendOutput(outputs, fmt.Sprintf("candidate_%d", i), cand)
	}

	return model.TurnRecord{
		Timestamp:     start.UTC(),
		UserInput:     utterance,
		FinalResponse: payload.Message,
		TriageLevel:   payload.TriageLevel,
		UrgencyScore:  payload.UrgencyScore,
		CriticScore:   payload.Meta.CriticScore,
		LatencyMS:     payload.Meta.LatencyMS,
		AgentOutputs:  outputs,
	}
}

func appendOutput(outputs []json.RawMessage, stage string, v any) []json.RawMessage {
	raw, err := json.Marshal(map[string]any{"stage": stage, "output": v})
	if err != nil {
		return outputs
	}
	return append(outputs, raw)
}
