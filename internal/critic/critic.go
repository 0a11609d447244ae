// Package critic implements the quality gate: a checklist evaluator, a
// priority-ordered refiner, and the bounded loop that drives them.
package critic

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/medassist/vha/internal/model"
)

// diagnosisMarkers are phrasings that assert a definitive diagnosis. A triage
// assistant must stay with cautious language.
var diagnosisMarkers = []string{
	"you have ",
	"you are suffering from",
	"diagnosed with",
	"the diagnosis is",
	"this is definitely",
	"it is certain",
}

var dosageRe = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s?(?:mg|mcg|µg|ml|milligrams?|millilitres?|tablets?|pills?)\b`)

// actionMarkers indicate a concrete next step the patient can take.
var actionMarkers = []string{
	"call 911",
	"emergency services",
	"urgent care",
	"schedule",
	"arrange",
	"visit",
	"rest",
	"hydrat",
	"monitor",
	"follow-up",
}

// alarmMarkers are escalation phrasings that are out of place in a low or
// medium urgency response.
var alarmMarkers = []string{
	"call 911",
	"emergency services",
	"immediately",
	"do not drive",
}

// empathyMarkers satisfy the patient-facing tone check.
var empathyMarkers = []string{
	"thank you",
	"i'm sorry",
	"i am sorry",
	"i understand",
	"sorry you're",
}

// Evaluator scores candidates against the fixed safety and completeness
// checklists. Evaluation is a pure function of the candidate and the turn
// context.
type Evaluator struct{}

// NewEvaluator constructs an Evaluator.
func NewEvaluator() *Evaluator { return &Evaluator{} }

// Evaluate applies the checklists and the scoring rubric: start at 10,
// subtract 3 per safety breach, 2 for a missing actionable step, 1 per tone
// or naming issue, floor 0.
func (e *Evaluator) Evaluate(draft model.DraftResponse, turn model.TurnContext) model.CriticVerdict {
	lower := strings.ToLower(draft.Message)
	verdict := model.CriticVerdict{
		SafetyViolations:       []model.ViolationKind{},
		CompletenessViolations: []model.ViolationKind{},
	}

	// Safety: hard fails.
	if containsAny(lower, diagnosisMarkers) {
		verdict.SafetyViolations = append(verdict.SafetyViolations, model.ViolationDiagnosis)
	}
	if dosageRe.MatchString(draft.Message) {
		verdict.SafetyViolations = append(verdict.SafetyViolations, model.ViolationDosage)
	}
	if missed := missedRedFlags(lower, turn.Analysis.RedFlags); len(missed) > 0 || (len(turn.Analysis.RedFlags) > 0 && !escalates(lower)) {
		verdict.SafetyViolations = append(verdict.SafetyViolations, model.ViolationRedFlagMissed)
	}

	// Completeness: soft, score-bearing.
	if !namesTriageLevel(lower, draft.TriageLevel) {
		verdict.CompletenessViolations = append(verdict.CompletenessViolations, model.ViolationTriageUnnamed)
	}
	if !containsAny(lower, actionMarkers) {
		verdict.CompletenessViolations = append(verdict.CompletenessViolations, model.ViolationNoNextStep)
	}
	if badTone(lower, draft.TriageLevel) {
		verdict.CompletenessViolations = append(verdict.CompletenessViolations, model.ViolationTone)
	}

	score := 10
	score -= 3 * len(verdict.SafetyViolations)
	for _, v := range verdict.CompletenessViolations {
		switch v {
		case model.ViolationNoNextStep:
			score -= 2
		default:
			score--
		}
	}
	if score < 0 {
		score = 0
	}
	verdict.Score = score
	return verdict
}

// missedRedFlags returns the patient-reported red flags the message fails to
// echo. Synthetic flags have no patient phrasing to echo; for those the
// escalation check alone applies.
func missedRedFlags(lower string, flags []string) []string {
	var missed []string
	for _, flag := range flags {
		if model.SyntheticRedFlag(flag) {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(flag)) {
			missed = append(missed, flag)
		}
	}
	return missed
}

func escalates(lower string) bool {
	return strings.Contains(lower, "911") || strings.Contains(lower, "emergency")
}

func namesTriageLevel(lower string, level model.TriageLevel) bool {
	return strings.Contains(lower, fmt.Sprintf("%s urgency", level))
}

// badTone flags alarming phrasing on low/medium responses and any response
// lacking an empathetic acknowledgement.
func badTone(lower string, level model.TriageLevel) bool {
	if !containsAny(lower, empathyMarkers) {
		return true
	}
	if level == model.TriageHigh {
		return false
	}
	return containsAny(lower, alarmMarkers)
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
