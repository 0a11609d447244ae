package critic

import (
	"context"

	"github.com/medassist/vha/internal/logging"
	"github.com/medassist/vha/internal/model"
)

// State names a position in the quality-gate state machine.
type State string

// Loop states. Accepted and Exhausted are terminal.
const (
	StateDraft      State = "draft"
	StateEvaluating State = "evaluating"
	StateRefining   State = "refining"
	StateAccepted   State = "accepted"
	StateExhausted  State = "exhausted"
)

// Candidate pairs a draft with the verdict it received.
type Candidate struct {
	Draft   model.DraftResponse
	Verdict model.CriticVerdict
}

// Outcome is the terminal result of one loop run.
type Outcome struct {
	Final      model.DraftResponse
	Verdict    model.CriticVerdict
	State      State
	Iterations int // refinement passes performed
	Unresolved bool
	Candidates []Candidate
}

// Loop runs the evaluate/refine cycle until a candidate is accepted or the
// iteration budget is exhausted. The loop is strictly sequential: each
// refinement depends on the previous verdict.
type Loop struct {
	evaluator     *Evaluator
	refiner       *Refiner
	threshold     int
	maxIterations int
}

// NewLoop constructs a Loop with the configured acceptance threshold and
// refinement budget.
func NewLoop(evaluator *Evaluator, refiner *Refiner, threshold, maxIterations int) *Loop {
	if maxIterations < 1 {
		maxIterations = 3
	}
	return &Loop{
		evaluator:     evaluator,
		refiner:       refiner,
		threshold:     threshold,
		maxIterations: maxIterations,
	}
}

// Run drives the state machine starting from the composer's draft. When the
// budget runs out, or ctx expires mid-loop, the highest-scoring candidate
// seen so far is returned with Unresolved set. The first candidate is always
// evaluated, so the caller always receives a safety-reviewed-or-flagged
// response.
func (l *Loop) Run(ctx context.Context, draft model.DraftResponse, turn model.TurnContext) Outcome {
	logger := logging.Component("critic")

	current := draft
	iterations := 0
	candidates := make([]Candidate, 0, l.maxIterations+1)

	for {
		verdict := l.evaluator.Evaluate(current, turn)
		candidates = append(candidates, Candidate{Draft: current, Verdict: verdict})
		logger.Debug().
			Int("iteration", iterations).
			Int("score", verdict.Score).
			Int("safety_violations", len(verdict.SafetyViolations)).
			Msg("candidate evaluated")

		if verdict.Accepted(l.threshold) {
			return Outcome{
				Final:      current,
				Verdict:    verdict,
				State:      StateAccepted,
				Iterations: iterations,
				Candidates: candidates,
			}
		}

		if iterations == l.maxIterations {
			return l.exhausted(candidates, iterations)
		}
		if ctx.Err() != nil {
			logger.Warn().Int("iteration", iterations).Msg("turn budget exceeded, returning best candidate so far")
			return l.exhausted(candidates, iterations)
		}

		current = l.refiner.Refine(current, verdict, turn)
		iterations++
	}
}

// exhausted picks the highest-scoring candidate across all iterations, not
// necessarily the last one.
func (l *Loop) exhausted(candidates []Candidate, iterations int) Outcome {
	best := 0
	for i, cand := range candidates {
		if cand.Verdict.Score > candidates[best].Verdict.Score {
			best = i
		}
	}
	return Outcome{
		Final:      candidates[best].Draft,
		Verdict:    candidates[best].Verdict,
		State:      StateExhausted,
		Iterations: iterations,
		Unresolved: true,
		Candidates: candidates,
	}
}
