package critic

import (
	"fmt"
	"strings"

	"github.com/medassist/vha/internal/compose"
	"github.com/medassist/vha/internal/model"
)

// Refiner corrects the violations a verdict names, in strict priority order:
// safety first, then completeness, then tone. It returns a new candidate and
// leaves every aspect the verdict did not flag untouched, so an already
// correct part of the message cannot regress.
type Refiner struct{}

// NewRefiner constructs a Refiner.
func NewRefiner() *Refiner { return &Refiner{} }

// Refine applies corrections for the verdict to a copy of the draft.
func (r *Refiner) Refine(draft model.DraftResponse, verdict model.CriticVerdict, turn model.TurnContext) model.DraftResponse {
	out := draft.Clone()

	// Priority 1: safety.
	for _, v := range verdict.SafetyViolations {
		switch v {
		case model.ViolationDiagnosis:
			out.Message = softenDiagnosis(out.Message)
		case model.ViolationDosage:
			out.Message = stripDosage(out.Message)
		case model.ViolationRedFlagMissed:
			out.Message = escalateRedFlags(out.Message, turn.Analysis.RedFlags)
		}
	}

	// Priority 2: completeness.
	for _, v := range verdict.CompletenessViolations {
		switch v {
		case model.ViolationTriageUnnamed:
			out.Message = appendSentence(out.Message,
				fmt.Sprintf("Your situation is classified as %s urgency.", out.TriageLevel))
		case model.ViolationNoNextStep:
			out.Message = appendSentence(out.Message, compose.NextStep(out.TriageLevel))
		}
	}

	// Priority 3: tone.
	for _, v := range verdict.CompletenessViolations {
		if v == model.ViolationTone {
			out.Message = softenTone(out.Message, out.TriageLevel)
		}
	}

	return out
}

func softenDiagnosis(message string) string {
	replacer := strings.NewReplacer(
		"you have ", "you may have ",
		"You have ", "You may have ",
		"you are suffering from", "you may be experiencing",
		"You are suffering from", "You may be experiencing",
		"diagnosed with", "possibly experiencing",
		"the diagnosis is", "one possibility could be",
		"The diagnosis is", "One possibility could be",
		"this is definitely", "this might be",
		"This is definitely", "This might be",
		"it is certain", "it is possible",
	)
	return replacer.Replace(message)
}

func stripDosage(message string) string {
	return dosageRe.ReplaceAllString(message, "an appropriate over-the-counter option (follow the label)")
}

func escalateRedFlags(message string, flags []string) string {
	var patient []string
	for _, flag := range flags {
		if !model.SyntheticRedFlag(flag) {
			patient = append(patient, flag)
		}
	}
	if len(flags) == 0 {
		return message
	}
	if len(patient) == 0 {
		// Only synthetic markers: escalate without echoing them.
		return appendSentence(message,
			"Out of caution, please call 911 or your local emergency services immediately.")
	}

	var missing []string
	lower := strings.ToLower(message)
	for _, flag := range patient {
		if !strings.Contains(lower, strings.ToLower(flag)) {
			missing = append(missing, flag)
		}
	}
	mention := strings.Join(missing, " and ")
	if mention == "" {
		mention = strings.Join(patient, " and ")
	}
	return appendSentence(message,
		fmt.Sprintf("Because you mentioned %s, please call 911 or your local emergency services immediately.", mention))
}

// softenTone removes alarming phrasing from low/medium responses and adds an
// empathetic acknowledgement when one is missing.
func softenTone(message string, level model.TriageLevel) string {
	if !containsAny(strings.ToLower(message), empathyMarkers) {
		message = "Thank you for sharing this with me. " + message
	}
	if level == model.TriageHigh {
		return message
	}
	replacer := strings.NewReplacer(
		" immediately", " soon",
		"call 911 or your local emergency services", "contact your care provider",
		"call 911", "contact your care provider",
		", and do not drive yourself", "",
	)
	return replacer.Replace(message)
}

func appendSentence(message, sentence string) string {
	message = strings.TrimSpace(message)
	if message != "" && !strings.HasSuffix(message, ".") && !strings.HasSuffix(message, "!") {
		message += "."
	}
	if message == "" {
		return sentence
	}
	return message + " " + sentence
}
