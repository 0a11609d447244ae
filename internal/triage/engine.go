// Package triage classifies symptom records into urgency levels.
package triage

import (
	"context"
	"fmt"
	"strings"

	"github.com/medassist/vha/internal/model"
)

// redFlagTerms are symptom patterns that force an emergency classification.
// Matching any of them overrides numeric severity.
var redFlagTerms = []string{
	"chest pain",
	"shortness of breath",
	"loss of consciousness",
	"thunderclap",
	"worst headache",
	"vision changes",
	"neurological deficit",
	"stroke",
	"heart attack",
	"severe abdominal pain",
	"vomiting blood",
	"syncope",
	"severe dehydration",
}

// urgentTerms raise an otherwise low classification to medium.
var urgentTerms = []string{
	"persistent vomiting",
	"unable to keep fluids",
	"fever with confusion",
	"severe weakness",
	"unintentional weight loss",
	"jaundice",
	"severe pain",
}

// Engine derives an AnalysisResult from an IntakeRecord. Classification is
// deterministic: red-flag pattern matching plus severity and duration rules.
type Engine struct {
	maxReasons int
}

// NewEngine constructs an Engine. maxReasons caps the justification list.
func NewEngine(maxReasons int) *Engine {
	if maxReasons < 1 {
		maxReasons = 4
	}
	return &Engine{maxReasons: maxReasons}
}

// Analyze classifies the record. The returned reasons list always has at
// least one entry.
func (e *Engine) Analyze(_ context.Context, rec model.IntakeRecord) (model.AnalysisResult, error) {
	haystack := strings.ToLower(strings.Join(append([]string{rec.Symptom, rec.FreeText}, rec.AdditionalSymptoms...), " "))

	var flags []string
	for _, term := range redFlagTerms {
		if strings.Contains(haystack, term) {
			flags = append(flags, term)
		}
	}

	var reasons []string
	level := model.TriageLow

	switch {
	case len(flags) > 0:
		// Any red flag forces high regardless of stated severity.
		level = model.TriageHigh
		for _, flag := range flags {
			reasons = append(reasons, fmt.Sprintf("red flag reported: %s", flag))
		}
	case rec.Severity.Known():
		switch {
		case rec.Severity >= 7:
			level = model.TriageHigh
			reasons = append(reasons, fmt.Sprintf("patient-reported severity %d/10 indicates an urgent situation", rec.Severity))
		case rec.Severity >= 4:
			level = model.TriageMedium
			reasons = append(reasons, fmt.Sprintf("patient-reported severity %d/10 warrants a clinical follow-up", rec.Severity))
		default:
			reasons = append(reasons, fmt.Sprintf("patient-reported severity %d/10 is mild", rec.Severity))
		}
	default:
		reasons = append(reasons, "no red-flag symptoms identified in the description")
	}

	if level == model.TriageLow {
		for _, term := range urgentTerms {
			if strings.Contains(haystack, term) {
				level = model.TriageMedium
				reasons = append(reasons, fmt.Sprintf("concerning symptom pattern: %s", term))
				break
			}
		}
	}

	if level == model.TriageLow && isProlonged(rec.Duration) {
		level = model.TriageMedium
		reasons = append(reasons, fmt.Sprintf("symptoms persisting for %s suggest a same-week evaluation", rec.Duration))
	}

	if rec.Duration != model.Unknown && level != model.TriageHigh && !isProlonged(rec.Duration) {
		reasons = append(reasons, fmt.Sprintf("symptom duration of %s without escalation", rec.Duration))
	}

	if len(reasons) > e.maxReasons {
		reasons = reasons[:e.maxReasons]
	}

	return model.AnalysisResult{
		UrgencyScore: urgencyScore(level, rec.Severity, len(flags)),
		TriageLevel:  level,
		RedFlags:     dedupe(flags),
		Reasons:      reasons,
	}, nil
}

// urgencyScore maps the level to its 1-10 band: low [1,4], medium [5,7],
// high [8,10], positioned within the band by severity and flag count.
func urgencyScore(level model.TriageLevel, severity model.Severity, flagCount int) int {
	switch level {
	case model.TriageHigh:
		score := 8
		if severity >= 8 {
			score++
		}
		if flagCount >= 2 {
			score++
		}
		if score > 10 {
			score = 10
		}
		return score
	case model.TriageMedium:
		if severity.Known() && int(severity) >= 5 && int(severity) <= 7 {
			return int(severity)
		}
		return 5
	default:
		if severity.Known() && int(severity) <= 4 {
			return int(severity)
		}
		return 2
	}
}

func isProlonged(duration string) bool {
	lower := strings.ToLower(duration)
	return strings.Contains(lower, "week") || strings.Contains(lower, "month")
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
