// Package fhir provides the clinical-context collaborator: a keyed read-only
// record source and the bounded retriever the pipeline consumes it through.
package fhir

import (
	"context"
	"fmt"
	"time"

	"github.com/medassist/vha/internal/model"
)

// Source exposes patient context lookups. Implementations may be slow or
// unavailable; callers are expected to bound them with a timeout.
type Source interface {
	FetchContext(ctx context.Context, patientID string) (model.ExternalContext, error)
	ScheduleSlots(ctx context.Context, patientID string) ([]model.ScheduleSlot, error)
}

const (
	maxEncounters   = 3
	maxObservations = 5
)

// MockStore is an in-memory Source seeded with sample records. It stands in
// for a real EHR integration; reads are safe from any goroutine because the
// data is never mutated after construction.
type MockStore struct {
	encounters   map[string][]model.EncounterSummary
	observations map[string][]model.ObservationSummary
	slotBase     time.Time
}

// NewMockStore seeds the sample patients.
func NewMockStore() *MockStore {
	now := time.Now().UTC()
	day := func(daysAgo int) string {
		return now.AddDate(0, 0, -daysAgo).Format("2006-01-02")
	}
	return &MockStore{
		encounters: map[string][]model.EncounterSummary{
			"patient-001": {
				{Date: day(32), Class: "ambulatory", Reason: "Positional dizziness when standing"},
				{Date: day(180), Class: "emergency", Reason: "Severe headache with nausea"},
			},
			"patient-002": {
				{Date: day(14), Class: "ambulatory", Reason: "Persistent fatigue and malaise"},
			},
		},
		observations: map[string][]model.ObservationSummary{
			"patient-001": {
				{Date: day(32), Name: "blood pressure", Value: "118/76 mmHg"},
				{Date: day(32), Name: "heart rate", Value: "72 bpm"},
			},
			"patient-002": {
				{Date: day(14), Name: "hemoglobin", Value: "11.2 g/dL"},
			},
		},
		slotBase: now,
	}
}

// FetchContext returns recent encounters and observations for the patient.
// Unknown patients yield an empty bundle, not an error.
func (s *MockStore) FetchContext(ctx context.Context, patientID string) (model.ExternalContext, error) {
	if err := ctx.Err(); err != nil {
		return model.ExternalContext{}, err
	}
	if patientID == "" {
		return model.ExternalContext{}, fmt.Errorf("patient id is required")
	}

	encounters := s.encounters[patientID]
	if len(encounters) > maxEncounters {
		encounters = encounters[:maxEncounters]
	}
	observations := s.observations[patientID]
	if len(observations) > maxObservations {
		observations = observations[:maxObservations]
	}
	if len(encounters) == 0 && len(observations) == 0 {
		return model.ExternalContext{}, nil
	}

	return model.ExternalContext{
		PatientID:          patientID,
		RecentEncounters:   append([]model.EncounterSummary(nil), encounters...),
		RecentObservations: append([]model.ObservationSummary(nil), observations...),
	}, nil
}

// ScheduleSlots returns mock availability for the next days.
func (s *MockStore) ScheduleSlots(ctx context.Context, patientID string) ([]model.ScheduleSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []model.ScheduleSlot{
		{Start: s.slotBase.Add(24 * time.Hour).Truncate(time.Hour).Format(time.RFC3339), Channel: "telehealth"},
		{Start: s.slotBase.Add(72 * time.Hour).Truncate(time.Hour).Format(time.RFC3339), Channel: "in-person"},
	}, nil
}
