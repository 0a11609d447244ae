package triage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/vha/internal/model"
)

func TestAnalyzeRedFlagForcesHigh(t *testing.T) {
	t.Parallel()

	engine := NewEngine(4)
	rec := model.IntakeRecord{
		PatientID: "patient-001",
		Symptom:   "chest pain",
		Duration:  model.Unknown,
		Severity:  2,
		FreeText:  "I have chest pain",
	}

	result, err := engine.Analyze(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, model.TriageHigh, result.TriageLevel)
	assert.Contains(t, result.RedFlags, "chest pain")
	assert.GreaterOrEqual(t, result.UrgencyScore, 8)
	assert.NotEmpty(t, result.Reasons)
}

func TestAnalyzeSeverityBands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		severity  model.Severity
		wantLevel model.TriageLevel
		wantScore int
	}{
		{"severe", 8, model.TriageHigh, 9},
		{"threshold high", 7, model.TriageHigh, 8},
		{"moderate", 5, model.TriageMedium, 5},
		{"threshold medium", 4, model.TriageMedium, 5},
		{"mild", 3, model.TriageLow, 3},
		{"minimal", 1, model.TriageLow, 1},
	}

	engine := NewEngine(4)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := model.IntakeRecord{
				Symptom:  "headache",
				Duration: model.Unknown,
				Severity: tc.severity,
				FreeText: "my head hurts",
			}
			result, err := engine.Analyze(context.Background(), rec)
			require.NoError(t, err)
			assert.Equal(t, tc.wantLevel, result.TriageLevel)
			assert.Equal(t, tc.wantScore, result.UrgencyScore)
		})
	}
}

func TestAnalyzeUnknownSeverityDefaultsLow(t *testing.T) {
	t.Parallel()

	engine := NewEngine(4)
	rec := model.IntakeRecord{
		Symptom:  "fatigue",
		Duration: model.Unknown,
		FreeText: "feeling tired",
	}

	result, err := engine.Analyze(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, model.TriageLow, result.TriageLevel)
	assert.Equal(t, 2, result.UrgencyScore)
	assert.Empty(t, result.RedFlags)
}

func TestAnalyzeUrgentPatternRaisesLowToMedium(t *testing.T) {
	t.Parallel()

	engine := NewEngine(4)
	rec := model.IntakeRecord{
		Symptom:  "vomiting",
		Duration: model.Unknown,
		Severity: 2,
		FreeText: "persistent vomiting since last night",
	}

	result, err := engine.Analyze(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, model.TriageMedium, result.TriageLevel)
}

func TestAnalyzeProlongedDurationRaisesLowToMedium(t *testing.T) {
	t.Parallel()

	engine := NewEngine(4)
	rec := model.IntakeRecord{
		Symptom:  "cough",
		Duration: "two weeks",
		Severity: 2,
		FreeText: "had a cough for two weeks",
	}

	result, err := engine.Analyze(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, model.TriageMedium, result.TriageLevel)
	assert.Equal(t, 5, result.UrgencyScore)
}

func TestAnalyzeCapsReasons(t *testing.T) {
	t.Parallel()

	engine := NewEngine(2)
	rec := model.IntakeRecord{
		Symptom:            "chest pain",
		Duration:           "three days",
		Severity:           9,
		AdditionalSymptoms: []string{"shortness of breath", "vomiting blood"},
		FreeText:           "chest pain with shortness of breath, vomiting blood",
	}

	result, err := engine.Analyze(context.Background(), rec)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Reasons), 2)
	assert.Len(t, result.RedFlags, 3)
}

func TestUrgencyScoreStaysInBand(t *testing.T) {
	t.Parallel()

	// Two flags plus top severity still caps at 10.
	assert.Equal(t, 10, urgencyScore(model.TriageHigh, 9, 3))
	assert.Equal(t, 8, urgencyScore(model.TriageHigh, 0, 1))
	assert.Equal(t, 5, urgencyScore(model.TriageMedium, 0, 0))
	assert.Equal(t, 2, urgencyScore(model.TriageLow, 0, 0))
}
