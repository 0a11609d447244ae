package critic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/medassist/vha/internal/model"
)

func newTestLoop(threshold, maxIterations int) *Loop {
	return NewLoop(NewEvaluator(), NewRefiner(), threshold, maxIterations)
}

func TestLoopAcceptsCleanDraftWithoutRefining(t *testing.T) {
	t.Parallel()

	draft := model.DraftResponse{
		Message: "Thank you for sharing. I'm sorry you're dealing with a headache. " +
			"This is considered a low urgency situation. Rest, stay hydrated, and monitor your symptoms.",
		TriageLevel: model.TriageLow,
	}

	outcome := newTestLoop(8, 3).Run(context.Background(), draft, turnWithFlags())

	assert.Equal(t, StateAccepted, outcome.State)
	assert.Equal(t, 0, outcome.Iterations)
	assert.False(t, outcome.Unresolved)
	assert.Len(t, outcome.Candidates, 1)
	assert.Equal(t, draft.Message, outcome.Final.Message)
}

func TestLoopRefinesUntilAccepted(t *testing.T) {
	t.Parallel()

	draft := model.DraftResponse{
		Message:     "You have a tension headache.",
		TriageLevel: model.TriageLow,
	}

	outcome := newTestLoop(8, 3).Run(context.Background(), draft, turnWithFlags())

	assert.Equal(t, StateAccepted, outcome.State)
	assert.GreaterOrEqual(t, outcome.Iterations, 1)
	assert.True(t, outcome.Verdict.Safe())
	assert.GreaterOrEqual(t, outcome.Verdict.Score, 8)
	assert.NotContains(t, outcome.Final.Message, "You have a tension headache")
}

func TestLoopExhaustsBudgetAndReturnsBestCandidate(t *testing.T) {
	t.Parallel()

	draft := model.DraftResponse{
		Message: "Thank you for sharing. I'm sorry you're dealing with this. " +
			"This is considered a low urgency situation. Rest and monitor your symptoms.",
		TriageLevel: model.TriageLow,
	}

	// An unreachable threshold forces the loop to run out of iterations.
	outcome := newTestLoop(11, 3).Run(context.Background(), draft, turnWithFlags())

	assert.Equal(t, StateExhausted, outcome.State)
	assert.Equal(t, 3, outcome.Iterations)
	assert.True(t, outcome.Unresolved)
	assert.Len(t, outcome.Candidates, 4)

	// The returned candidate has the best score seen across the run.
	for _, cand := range outcome.Candidates {
		assert.LessOrEqual(t, cand.Verdict.Score, outcome.Verdict.Score)
	}
}

func TestLoopStopsOnExpiredContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	draft := model.DraftResponse{
		Message:     "You have the flu.",
		TriageLevel: model.TriageLow,
	}

	outcome := newTestLoop(8, 3).Run(ctx, draft, turnWithFlags())

	// The first candidate is still evaluated even with no budget left.
	assert.Equal(t, StateExhausted, outcome.State)
	assert.Equal(t, 0, outcome.Iterations)
	assert.True(t, outcome.Unresolved)
	assert.Len(t, outcome.Candidates, 1)
}

func TestLoopAcceptedImpliesSafe(t *testing.T) {
	t.Parallel()

	drafts := []model.DraftResponse{
		{Message: "You have angina. Take 20 mg of nitroglycerin.", TriageLevel: model.TriageHigh},
		{Message: "It is certain this is serious.", TriageLevel: model.TriageHigh},
		{Message: "Thank you. This is a high urgency situation, call 911 now.", TriageLevel: model.TriageHigh},
	}

	loop := newTestLoop(8, 3)
	for _, draft := range drafts {
		outcome := loop.Run(context.Background(), draft, turnWithFlags("chest pain"))
		if outcome.State == StateAccepted {
			assert.True(t, outcome.Verdict.Safe())
		}
	}
}
