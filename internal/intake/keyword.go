package intake

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/medassist/vha/internal/llm"
	"github.com/medassist/vha/internal/model"
)

// symptomTerms are matched in order; the first hit becomes the primary
// symptom and later hits become additional symptoms.
var symptomTerms = []string{
	"chest pain",
	"shortness of breath",
	"loss of consciousness",
	"vision changes",
	"abdominal pain",
	"headache",
	"dizziness",
	"lightheaded",
	"nausea",
	"vomiting",
	"fever",
	"cough",
	"fatigue",
	"rash",
	"sore throat",
	"back pain",
	"weakness",
}

var (
	durationRe = regexp.MustCompile(`(?i)\b(?:for|over|past|last)\s+((?:a|an|one|two|three|four|five|six|seven|\d+)\s+(?:hour|hours|day|days|week|weeks|month|months))\b`)
	severityRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:/|out of)\s*10\b|\bseverity\s+(?:of\s+)?(\d{1,2})\b`)
)

// Extract derives an intake record from the utterance with keyword rules
// alone. It backs the mock provider and the fallback path when the parse
// capability is unavailable.
func Extract(utterance string) parsedIntake {
	lower := strings.ToLower(utterance)

	var symptoms []string
	for _, term := range symptomTerms {
		if strings.Contains(lower, term) {
			symptoms = append(symptoms, term)
		}
	}

	parsed := parsedIntake{
		Symptom:            "unspecified",
		Duration:           model.Unknown,
		AdditionalSymptoms: []string{},
		FreeText:           utterance,
	}
	if len(symptoms) > 0 {
		parsed.Symptom = symptoms[0]
		parsed.AdditionalSymptoms = symptoms[1:]
	}

	if m := durationRe.FindStringSubmatch(lower); m != nil {
		parsed.Duration = m[1]
	} else if strings.Contains(lower, "yesterday") {
		parsed.Duration = "since yesterday"
	} else if strings.Contains(lower, "this morning") {
		parsed.Duration = "since this morning"
	}

	parsed.Severity = extractSeverity(lower)
	return parsed
}

func extractSeverity(lower string) model.Severity {
	if m := severityRe.FindStringSubmatch(lower); m != nil {
		digits := m[1]
		if digits == "" {
			digits = m[2]
		}
		if n, err := strconv.Atoi(digits); err == nil {
			return model.CoerceSeverity(n)
		}
	}
	switch {
	case strings.Contains(lower, "unbearable"), strings.Contains(lower, "worst"):
		return 9
	case strings.Contains(lower, "severe"):
		return 8
	case strings.Contains(lower, "moderate"):
		return 5
	case strings.Contains(lower, "mild"), strings.Contains(lower, "slight"):
		return 3
	}
	return 0
}

// NewMockGenerator returns a deterministic Generator for mock mode and tests.
// It runs the keyword extractor and marshals the result as the parse output.
func NewMockGenerator() llm.Generator {
	return llm.GeneratorFunc(func(_ context.Context, _, input string) (string, error) {
		// Multi-turn prompts embed the current utterance on the last line.
		utterance := input
		if idx := strings.LastIndex(input, "Current user input: "); idx != -1 {
			utterance = input[idx+len("Current user input: "):]
		}
		data, err := json.Marshal(Extract(utterance))
		if err != nil {
			return "", err
		}
		return string(data), nil
	})
}
