package compose

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/vha/internal/fhir"
	"github.com/medassist/vha/internal/guideline"
	"github.com/medassist/vha/internal/model"
)

func newComposer(t *testing.T) *Composer {
	t.Helper()
	index, err := guideline.NewIndex()
	require.NoError(t, err)
	return NewComposer(index, fhir.NewMockStore())
}

func TestComposeHighUrgency(t *testing.T) {
	t.Parallel()

	rec := model.IntakeRecord{
		PatientID: "patient-001",
		Symptom:   "chest pain",
		Duration:  "two hours",
		Severity:  9,
	}
	turn := model.TurnContext{
		Analysis: model.AnalysisResult{
			UrgencyScore: 9,
			TriageLevel:  model.TriageHigh,
			RedFlags:     []string{"chest pain"},
			Reasons:      []string{"red flag reported: chest pain"},
		},
	}

	draft := newComposer(t).Compose(context.Background(), rec, turn)

	assert.Contains(t, draft.Message, "chest pain")
	assert.Contains(t, draft.Message, "high urgency")
	assert.Contains(t, draft.Message, "911")
	assert.Equal(t, model.TriageHigh, draft.TriageLevel)
	assert.Equal(t, 9, draft.UrgencyScore)
	require.NotNil(t, draft.Schedule)
	assert.Equal(t, "call_911", draft.Schedule.Instructions)
	assert.Empty(t, draft.Schedule.Slots)
}

func TestComposeLowUrgencyOffersSlots(t *testing.T) {
	t.Parallel()

	rec := model.IntakeRecord{
		PatientID: "patient-001",
		Symptom:   "headache",
		Duration:  "two days",
		Severity:  3,
	}
	turn := model.TurnContext{
		Analysis: model.AnalysisResult{
			UrgencyScore: 3,
			TriageLevel:  model.TriageLow,
			Reasons:      []string{"patient-reported severity 3/10 is mild"},
		},
	}

	draft := newComposer(t).Compose(context.Background(), rec, turn)

	assert.Contains(t, draft.Message, "low urgency")
	assert.Contains(t, draft.Message, "self-care")
	assert.NotContains(t, draft.Message, "911")
	require.NotNil(t, draft.Schedule)
	assert.Len(t, draft.Schedule.Slots, 2)
}

func TestComposeIncludesCitations(t *testing.T) {
	t.Parallel()

	rec := model.IntakeRecord{PatientID: "patient-001", Symptom: "headache"}
	turn := model.TurnContext{
		Analysis: model.AnalysisResult{TriageLevel: model.TriageLow, Reasons: []string{"mild"}},
	}

	draft := newComposer(t).Compose(context.Background(), rec, turn)

	require.NotEmpty(t, draft.Citations)
	assert.Contains(t, draft.Citations[0], "[self-care-headache-guideline]")
	assert.Contains(t, draft.Message, "According to")
}

func TestComposeWithoutCollaborators(t *testing.T) {
	t.Parallel()

	composer := NewComposer(nil, nil)
	rec := model.IntakeRecord{Symptom: "unspecified"}
	turn := model.TurnContext{
		Analysis: model.AnalysisResult{TriageLevel: model.TriageMedium, Reasons: []string{"follow-up warranted"}},
	}

	draft := composer.Compose(context.Background(), rec, turn)

	assert.Contains(t, draft.Message, "these symptoms")
	assert.Empty(t, draft.Citations)
	assert.Nil(t, draft.Schedule)
}

type brokenScheduleSource struct{}

func (brokenScheduleSource) FetchContext(context.Context, string) (model.ExternalContext, error) {
	return model.ExternalContext{}, nil
}

func (brokenScheduleSource) ScheduleSlots(context.Context, string) ([]model.ScheduleSlot, error) {
	return nil, fmt.Errorf("scheduling backend down")
}

func TestComposeOmitsSlotsOnScheduleError(t *testing.T) {
	t.Parallel()

	index, err := guideline.NewIndex()
	require.NoError(t, err)
	composer := NewComposer(index, brokenScheduleSource{})

	rec := model.IntakeRecord{PatientID: "patient-001", Symptom: "headache", Severity: 3}
	turn := model.TurnContext{
		Analysis: model.AnalysisResult{
			UrgencyScore: 3,
			TriageLevel:  model.TriageLow,
			Reasons:      []string{"patient-reported severity 3/10 is mild"},
		},
	}

	draft := composer.Compose(context.Background(), rec, turn)

	assert.Nil(t, draft.Schedule)
	assert.Contains(t, draft.Message, "low urgency")
	assert.Contains(t, draft.Message, "self-care")
}

func TestComposeSyntheticRedFlagNotEchoed(t *testing.T) {
	t.Parallel()

	rec := model.IntakeRecord{PatientID: "patient-001", Symptom: "stomach ache", Severity: 2}
	turn := model.TurnContext{
		Analysis: model.AnalysisResult{
			UrgencyScore: 9,
			TriageLevel:  model.TriageHigh,
			RedFlags:     []string{model.RedFlagReasoningUnavailable},
			Reasons:      []string{"Urgency analysis was unavailable, so out of caution this is treated as high urgency"},
		},
	}

	draft := newComposer(t).Compose(context.Background(), rec, turn)

	assert.NotContains(t, draft.Message, model.RedFlagReasoningUnavailable)
	assert.Contains(t, draft.Message, "emergency")
	assert.Contains(t, draft.Message, "911")
	// The raw marker stays on the draft for the payload and history.
	assert.Contains(t, draft.RedFlags, model.RedFlagReasoningUnavailable)
}

func TestNextStepPerLevel(t *testing.T) {
	t.Parallel()

	assert.Contains(t, NextStep(model.TriageHigh), "911")
	assert.Contains(t, NextStep(model.TriageMedium), "telehealth")
	assert.Contains(t, NextStep(model.TriageLow), "self-care")
}
