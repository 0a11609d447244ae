// Package model defines the typed records passed between pipeline stages.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unknown is the sentinel for fields the intake parser could not determine.
const Unknown = "unknown"

// TriageLevel is the coarse urgency classification.
type TriageLevel string

// Triage levels in escalation order.
const (
	TriageLow    TriageLevel = "low"
	TriageMedium TriageLevel = "medium"
	TriageHigh   TriageLevel = "high"
)

// Valid reports whether the level is one of the three known values.
func (l TriageLevel) Valid() bool {
	switch l {
	case TriageLow, TriageMedium, TriageHigh:
		return true
	}
	return false
}

// Severity is a 1..10 patient-reported severity. Zero means unknown.
type Severity int

// Known reports whether the patient stated a usable severity.
func (s Severity) Known() bool { return s >= 1 && s <= 10 }

// MarshalJSON emits the numeric severity, or the "unknown" sentinel.
func (s Severity) MarshalJSON() ([]byte, error) {
	if !s.Known() {
		return json.Marshal(Unknown)
	}
	return json.Marshal(int(s))
}

// UnmarshalJSON accepts a number, a numeric string, or anything else as unknown.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*s = CoerceSeverity(int(n))
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(str)); err == nil {
			*s = CoerceSeverity(n)
			return nil
		}
	}
	*s = 0
	return nil
}

// CoerceSeverity clamps a parsed value to the valid range, zero if out of range.
func CoerceSeverity(n int) Severity {
	if n < 1 || n > 10 {
		return 0
	}
	return Severity(n)
}

// RedFlagReasoningUnavailable is the synthetic red flag attached when urgency
// reasoning fails and the turn fail-safes to high.
const RedFlagReasoningUnavailable = "reasoning_unavailable"

// SyntheticRedFlag reports whether the flag was generated by the pipeline
// rather than reported by the patient. Synthetic flags stay in payloads and
// history but must not be echoed verbatim in patient-facing text.
func SyntheticRedFlag(flag string) bool {
	return flag == RedFlagReasoningUnavailable
}

// IntakeRecord is the structured symptom record for one turn. It is created
// once by the intake normalizer and never mutated afterwards.
type IntakeRecord struct {
	PatientID          string   `json:"patient_id"`
	Symptom            string   `json:"symptom"`
	Duration           string   `json:"duration"`
	Severity           Severity `json:"severity"`
	AdditionalSymptoms []string `json:"additional_symptoms"`
	FreeText           string   `json:"free_text"`
}

// AnalysisResult is the urgency half of the turn context.
type AnalysisResult struct {
	UrgencyScore int         `json:"urgency_score"`
	TriageLevel  TriageLevel `json:"triage_level"`
	RedFlags     []string    `json:"red_flags"`
	Reasons      []string    `json:"reasons"`
}

// EncounterSummary is a condensed view of a prior clinical encounter.
type EncounterSummary struct {
	Date   string `json:"date"`
	Class  string `json:"class"`
	Reason string `json:"reason"`
}

// ObservationSummary is a condensed view of a recorded observation.
type ObservationSummary struct {
	Date  string `json:"date"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ExternalContext is the enrichment half of the turn context. A zero value
// means the retriever failed or timed out and the turn proceeds without it.
type ExternalContext struct {
	PatientID          string               `json:"patient_id,omitempty"`
	RecentEncounters   []EncounterSummary   `json:"recent_encounters,omitempty"`
	RecentObservations []ObservationSummary `json:"recent_observations,omitempty"`
}

// Empty reports whether no context was retrieved.
func (c ExternalContext) Empty() bool {
	return c.PatientID == "" && len(c.RecentEncounters) == 0 && len(c.RecentObservations) == 0
}

// TurnContext is the merged output of the parallel analysis stage.
type TurnContext struct {
	Analysis AnalysisResult  `json:"analysis"`
	External ExternalContext `json:"external_context"`
}

// ScheduleSlot is one bookable appointment slot.
type ScheduleSlot struct {
	Start   string `json:"start"`
	Channel string `json:"channel"`
}

// ScheduleInfo carries scheduling guidance attached to a response.
type ScheduleInfo struct {
	Slots        []ScheduleSlot `json:"slots,omitempty"`
	Instructions string         `json:"instructions,omitempty"`
}

// DraftResponse is one candidate patient-facing response. The refiner builds a
// new DraftResponse per iteration rather than mutating in place, so every
// candidate stays inspectable.
type DraftResponse struct {
	Message      string        `json:"message"`
	TriageLevel  TriageLevel   `json:"triage_level"`
	UrgencyScore int           `json:"urgency_score"`
	RedFlags     []string      `json:"red_flags"`
	Citations    []string      `json:"citations"`
	Schedule     *ScheduleInfo `json:"schedule,omitempty"`
}

// Clone returns a deep copy safe for independent mutation.
func (d DraftResponse) Clone() DraftResponse {
	out := d
	out.RedFlags = append([]string(nil), d.RedFlags...)
	out.Citations = append([]string(nil), d.Citations...)
	if d.Schedule != nil {
		sched := *d.Schedule
		sched.Slots = append([]ScheduleSlot(nil), d.Schedule.Slots...)
		out.Schedule = &sched
	}
	return out
}

// ViolationKind names one failed critic check.
type ViolationKind string

// Safety violations (hard fails) and completeness violations (soft).
const (
	ViolationDiagnosis     ViolationKind = "definitive_diagnosis"
	ViolationDosage        ViolationKind = "medication_dosage"
	ViolationRedFlagMissed ViolationKind = "red_flag_not_escalated"
	ViolationTriageUnnamed ViolationKind = "triage_level_unnamed"
	ViolationNoNextStep    ViolationKind = "no_actionable_step"
	ViolationTone          ViolationKind = "alarming_tone"
)

// CriticVerdict is the critic's score for one candidate. Ephemeral, one per
// loop iteration.
type CriticVerdict struct {
	Score                  int             `json:"score"`
	SafetyViolations       []ViolationKind `json:"safety_violations"`
	CompletenessViolations []ViolationKind `json:"completeness_violations"`
}

// Safe reports whether no hard safety checks failed.
func (v CriticVerdict) Safe() bool { return len(v.SafetyViolations) == 0 }

// Accepted reports whether the candidate passes the quality gate.
func (v CriticVerdict) Accepted(threshold int) bool {
	return v.Safe() && v.Score >= threshold
}

// Meta describes how the final response was produced.
type Meta struct {
	CriticScore int   `json:"critic_score"`
	LatencyMS   int64 `json:"latency_ms"`
	Iterations  int   `json:"iterations"`
	Unresolved  bool  `json:"unresolved"`
}

// Payload is the assembled per-turn response returned to the front-end.
type Payload struct {
	Message      string        `json:"message"`
	TriageLevel  TriageLevel   `json:"triage_level"`
	UrgencyScore int           `json:"urgency_score"`
	RedFlags     []string      `json:"red_flags"`
	Reasoning    []string      `json:"reasoning"`
	Citations    []string      `json:"citations"`
	Schedule     *ScheduleInfo `json:"schedule,omitempty"`
	SessionID    string        `json:"session_id"`
	Error        string        `json:"error,omitempty"`
	Meta         Meta          `json:"meta"`
}

// TurnRecord is the immutable history entry appended after a turn completes.
type TurnRecord struct {
	Timestamp     time.Time         `json:"timestamp"`
	UserInput     string            `json:"user_input"`
	FinalResponse string            `json:"final_response"`
	TriageLevel   TriageLevel       `json:"triage_level"`
	UrgencyScore  int               `json:"urgency_score"`
	CriticScore   int               `json:"critic_score"`
	LatencyMS     int64             `json:"latency_ms"`
	AgentOutputs  []json.RawMessage `json:"agent_outputs,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// SessionState is the accumulated state for one conversation.
type SessionState struct {
	SessionID  string       `json:"session_id"`
	History    []TurnRecord `json:"history"`
	TotalTurns int          `json:"total_turns"`
}

// Validate checks the total_turns/history invariant.
func (s SessionState) Validate() error {
	if s.TotalTurns != len(s.History) {
		return fmt.Errorf("session %s: total_turns=%d, history=%d", s.SessionID, s.TotalTurns, len(s.History))
	}
	return nil
}
