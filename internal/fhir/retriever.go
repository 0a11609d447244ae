package fhir

import (
	"context"
	"time"

	"github.com/medassist/vha/internal/logging"
	"github.com/medassist/vha/internal/model"
)

// Retriever wraps a Source with a bounded timeout. Context retrieval is an
// enrichment step: on timeout or error the result degrades to empty and the
// turn proceeds.
type Retriever struct {
	source  Source
	timeout time.Duration
}

// NewRetriever constructs a Retriever.
func NewRetriever(source Source, timeout time.Duration) *Retriever {
	return &Retriever{source: source, timeout: timeout}
}

// Fetch returns the patient's external context, or an empty bundle if the
// source fails or exceeds the timeout. It never returns an error.
func (r *Retriever) Fetch(ctx context.Context, patientID string) model.ExternalContext {
	logger := logging.Component("retriever")

	fetchCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	type result struct {
		bundle model.ExternalContext
		err    error
	}
	done := make(chan result, 1)
	go func() {
		bundle, err := r.source.FetchContext(fetchCtx, patientID)
		done <- result{bundle: bundle, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			logger.Warn().Err(res.err).Str("patient_id", patientID).Msg("context fetch failed, continuing without it")
			return model.ExternalContext{}
		}
		return res.bundle
	case <-fetchCtx.Done():
		logger.Warn().Str("patient_id", patientID).Msg("context fetch timed out, continuing without it")
		return model.ExternalContext{}
	}
}
