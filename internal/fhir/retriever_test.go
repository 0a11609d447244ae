package fhir

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/vha/internal/model"
)

type slowSource struct {
	delay  time.Duration
	bundle model.ExternalContext
	err    error
}

func (s *slowSource) FetchContext(ctx context.Context, _ string) (model.ExternalContext, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return model.ExternalContext{}, ctx.Err()
	}
	return s.bundle, s.err
}

func (s *slowSource) ScheduleSlots(context.Context, string) ([]model.ScheduleSlot, error) {
	return nil, nil
}

func TestFetchReturnsBundle(t *testing.T) {
	t.Parallel()

	r := NewRetriever(NewMockStore(), time.Second)
	bundle := r.Fetch(context.Background(), "patient-001")

	assert.Equal(t, "patient-001", bundle.PatientID)
	assert.NotEmpty(t, bundle.RecentEncounters)
	assert.NotEmpty(t, bundle.RecentObservations)
}

func TestFetchUnknownPatientIsEmpty(t *testing.T) {
	t.Parallel()

	r := NewRetriever(NewMockStore(), time.Second)
	bundle := r.Fetch(context.Background(), "patient-999")
	assert.True(t, bundle.Empty())
}

func TestFetchDegradesOnTimeout(t *testing.T) {
	t.Parallel()

	src := &slowSource{delay: 500 * time.Millisecond, bundle: model.ExternalContext{PatientID: "p"}}
	r := NewRetriever(src, 20*time.Millisecond)

	start := time.Now()
	bundle := r.Fetch(context.Background(), "p")

	assert.True(t, bundle.Empty())
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestFetchDegradesOnError(t *testing.T) {
	t.Parallel()

	src := &slowSource{err: fmt.Errorf("ehr unavailable")}
	r := NewRetriever(src, time.Second)

	bundle := r.Fetch(context.Background(), "p")
	assert.True(t, bundle.Empty())
}

func TestMockStoreCapsRecords(t *testing.T) {
	t.Parallel()

	store := NewMockStore()
	bundle, err := store.FetchContext(context.Background(), "patient-001")
	require.NoError(t, err)

	assert.LessOrEqual(t, len(bundle.RecentEncounters), maxEncounters)
	assert.LessOrEqual(t, len(bundle.RecentObservations), maxObservations)
}

func TestMockStoreScheduleSlots(t *testing.T) {
	t.Parallel()

	store := NewMockStore()
	slots, err := store.ScheduleSlots(context.Background(), "patient-001")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "telehealth", slots[0].Channel)
	assert.Equal(t, "in-person", slots[1].Channel)
}
