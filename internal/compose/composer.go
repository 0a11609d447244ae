// Package compose builds the first-pass patient-facing response from the
// intake record and the merged turn context.
package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/medassist/vha/internal/fhir"
	"github.com/medassist/vha/internal/guideline"
	"github.com/medassist/vha/internal/logging"
	"github.com/medassist/vha/internal/model"
)

// Composer assembles DraftResponses deterministically. The critic loop may
// replace its output; the composer itself applies the guardrail phrasing up
// front so most turns accept on the first evaluation.
type Composer struct {
	index  *guideline.Index
	source fhir.Source
}

// NewComposer constructs a Composer. Either collaborator may be nil, in which
// case citations or scheduling are simply omitted.
func NewComposer(index *guideline.Index, source fhir.Source) *Composer {
	return &Composer{index: index, source: source}
}

// Compose builds the initial candidate response.
func (c *Composer) Compose(ctx context.Context, rec model.IntakeRecord, turn model.TurnContext) model.DraftResponse {
	analysis := turn.Analysis

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Thank you for sharing. I'm sorry you're dealing with %s. ", describeConcern(rec)))
	b.WriteString(fmt.Sprintf("Based on what you've described, this is considered a %s urgency situation. ", analysis.TriageLevel))

	if len(analysis.RedFlags) > 0 {
		if patient := patientFlags(analysis.RedFlags); len(patient) > 0 {
			b.WriteString(fmt.Sprintf("Because you mentioned %s, please treat this as an emergency. ", joinNaturally(patient)))
		} else {
			b.WriteString("We could not complete an automated assessment of your symptoms, so out of caution please treat this as an emergency. ")
		}
	}
	if len(analysis.Reasons) > 0 {
		b.WriteString(analysis.Reasons[0])
		if !strings.HasSuffix(analysis.Reasons[0], ".") {
			b.WriteString(".")
		}
		b.WriteString(" ")
	}

	b.WriteString(NextStep(analysis.TriageLevel))

	citations := c.citations(rec)
	for _, cite := range citations {
		b.WriteString(fmt.Sprintf(" According to %s.", cite))
	}

	draft := model.DraftResponse{
		Message:      strings.TrimSpace(b.String()),
		TriageLevel:  analysis.TriageLevel,
		UrgencyScore: analysis.UrgencyScore,
		RedFlags:     append([]string(nil), analysis.RedFlags...),
		Citations:    citations,
		Schedule:     c.schedule(ctx, rec, analysis.TriageLevel),
	}
	return draft
}

// NextStep returns the actionable instruction for the triage level. The
// refiner reuses it when a candidate is missing a concrete step.
func NextStep(level model.TriageLevel) string {
	switch level {
	case model.TriageHigh:
		return "Please call 911 or your local emergency services immediately, and do not drive yourself."
	case model.TriageMedium:
		return "Please arrange a telehealth or in-person visit within the next few days, and seek urgent care sooner if anything worsens."
	default:
		return "You can start with self-care: rest, stay hydrated, and monitor your symptoms. If things change or persist, please schedule a follow-up visit."
	}
}

func (c *Composer) citations(rec model.IntakeRecord) []string {
	if c.index == nil {
		return []string{}
	}
	query := rec.Symptom
	if len(rec.AdditionalSymptoms) > 0 {
		query += " " + strings.Join(rec.AdditionalSymptoms, " ")
	}
	hits := c.index.Search(query, 2)
	out := make([]string, 0, len(hits))
	for _, hit := range hits {
		out = append(out, fmt.Sprintf("%s [%s]", hit.Title, hit.SourceID))
	}
	return out
}

func (c *Composer) schedule(ctx context.Context, rec model.IntakeRecord, level model.TriageLevel) *model.ScheduleInfo {
	if level == model.TriageHigh {
		return &model.ScheduleInfo{Instructions: "call_911"}
	}
	if c.source == nil {
		return nil
	}
	slots, err := c.source.ScheduleSlots(ctx, rec.PatientID)
	if err != nil {
		logger := logging.Component("composer")
		logger.Warn().Err(err).Msg("schedule lookup failed, omitting slots")
		return nil
	}
	if len(slots) == 0 {
		return nil
	}
	return &model.ScheduleInfo{Slots: slots}
}

func describeConcern(rec model.IntakeRecord) string {
	if rec.Symptom != "" && rec.Symptom != "unspecified" {
		return rec.Symptom
	}
	return "these symptoms"
}

// patientFlags drops synthetic pipeline markers so they never reach
// patient-facing text.
func patientFlags(flags []string) []string {
	out := make([]string, 0, len(flags))
	for _, flag := range flags {
		if model.SyntheticRedFlag(flag) {
			continue
		}
		out = append(out, flag)
	}
	return out
}

func joinNaturally(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}
