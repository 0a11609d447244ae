// Package intake turns raw patient utterances into structured symptom records.
//
// Field extraction is delegated to an injected text-understanding capability;
// this package owns validation and defaulting. Normalization never fails: any
// missing or unparseable field degrades to the "unknown" sentinel so a triage
// turn is never blocked on a parse failure.
package intake

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/medassist/vha/internal/llm"
	"github.com/medassist/vha/internal/logging"
	"github.com/medassist/vha/internal/model"
)

// DefaultPatientID is used when the utterance carries no patient identifier.
const DefaultPatientID = "patient-001"

const parseInstructions = `You are an intake parser for a symptom triage assistant.
Convert the user's message into JSON with keys:
  - symptom: short description of the primary concern
  - duration: free-text duration from the user (or "unknown")
  - severity: integer 1-10 if stated, else "unknown"
  - additional_symptoms: list of extra symptoms mentioned (strings)
  - free_text: copy of the user's message
Return JSON only with double quotes (no Markdown fences).`

// Normalizer produces IntakeRecords from utterances.
type Normalizer struct {
	gen llm.Generator
}

// NewNormalizer constructs a Normalizer over a text-understanding capability.
func NewNormalizer(gen llm.Generator) *Normalizer {
	return &Normalizer{gen: gen}
}

// parsedIntake mirrors the parser's output with tolerant field types.
type parsedIntake struct {
	PatientID          string         `json:"patient_id"`
	Symptom            string         `json:"symptom"`
	Duration           string         `json:"duration"`
	Severity           model.Severity `json:"severity"`
	AdditionalSymptoms []string       `json:"additional_symptoms"`
	FreeText           string         `json:"free_text"`
}

// Normalize returns a best-effort IntakeRecord for the utterance. The prior
// turn, when present, is offered to the parser as conversational context.
func (n *Normalizer) Normalize(ctx context.Context, utterance string, prior *model.TurnRecord) model.IntakeRecord {
	logger := logging.Component("intake")

	input := utterance
	if prior != nil {
		input = "Previous turn:\nUser: " + prior.UserInput + "\nResponse: " + prior.FinalResponse +
			"\n\nCurrent user input: " + utterance
	}

	raw, err := n.gen.Generate(ctx, parseInstructions, input)
	if err != nil {
		logger.Warn().Err(err).Msg("parse capability failed, falling back to keyword extraction")
		return n.finalize(Extract(utterance), utterance)
	}

	raw = stripFences(raw)
	if err := validateParseOutput(raw); err != nil {
		logger.Debug().Err(err).Msg("parse output failed schema validation")
	}

	var parsed parsedIntake
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		logger.Warn().Err(err).Msg("parse output is not valid JSON, falling back to keyword extraction")
		return n.finalize(Extract(utterance), utterance)
	}

	return n.finalize(parsed, utterance)
}

// finalize applies the defaulting rules so every field is populated.
func (n *Normalizer) finalize(parsed parsedIntake, utterance string) model.IntakeRecord {
	rec := model.IntakeRecord{
		PatientID:          strings.TrimSpace(parsed.PatientID),
		Symptom:            strings.TrimSpace(parsed.Symptom),
		Duration:           strings.TrimSpace(parsed.Duration),
		Severity:           parsed.Severity,
		AdditionalSymptoms: parsed.AdditionalSymptoms,
		FreeText:           utterance,
	}
	if rec.PatientID == "" {
		rec.PatientID = DefaultPatientID
	}
	if rec.Symptom == "" {
		rec.Symptom = "unspecified"
	}
	if rec.Duration == "" {
		rec.Duration = model.Unknown
	}
	if rec.AdditionalSymptoms == nil {
		rec.AdditionalSymptoms = []string{}
	}
	return rec
}

// stripFences removes a surrounding Markdown code fence, which some models
// emit despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	first := strings.Index(s, "\n")
	last := strings.LastIndex(s, "```")
	if first == -1 || last <= first {
		return s
	}
	return strings.TrimSpace(s[first+1 : last])
}
