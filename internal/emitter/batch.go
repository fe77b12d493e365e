package emitter

import (
	"context"

	"github.com/google/uuid"

	"github.com/rezonia/wsfe-client/internal/model"
)

// Item statuses
const (
	StatusAuthorized = "authorized"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// BatchItem is the outcome of one draft in a batch. An authorized item may
// still carry an error when its proofs could not be derived.
type BatchItem struct {
	Index    int       `json:"index"`
	Status   string    `json:"status"`
	Emission *Emission `json:"emission,omitempty"`
	Error    string    `json:"error,omitempty"`
	Err      error     `json:"-"`
}

// BatchResult holds item outcomes in submission order
type BatchResult struct {
	ID    string      `json:"id"`
	Items []BatchItem `json:"items"`
}

// Count returns how many items ended with status
func (r *BatchResult) Count(status string) int {
	n := 0
	for _, item := range r.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// EmitBatch emits drafts one at a time in order. A failed item does not stop
// the batch; the next item queries the last voucher again. Once ctx is done
// every remaining item is reported as cancelled.
func (e *Emitter) EmitBatch(ctx context.Context, account model.Account, drafts []model.Draft) *BatchResult {
	result := &BatchResult{
		ID:    uuid.New().String(),
		Items: make([]BatchItem, len(drafts)),
	}
	log := e.logger.With().Str("batch", result.ID).Str("account", account.ID).Logger()
	log.Info().Int("size", len(drafts)).Msg("starting batch")

	for i, draft := range drafts {
		item := BatchItem{Index: i}

		if err := ctx.Err(); err != nil {
			item.Status = StatusCancelled
			item.Err = err
			item.Error = err.Error()
			result.Items[i] = item
			continue
		}

		emission, err := e.Emit(ctx, account, draft)
		switch {
		case emission != nil:
			// approved; err is set only when the proofs failed
			item.Status = StatusAuthorized
			item.Emission = emission
			if err != nil {
				item.Err = err
				item.Error = err.Error()
			}
		default:
			item.Status = StatusFailed
			item.Err = err
			item.Error = err.Error()
			log.Warn().Err(err).Int("index", i).Msg("batch item failed")
		}
		result.Items[i] = item
	}

	log.Info().
		Int("authorized", result.Count(StatusAuthorized)).
		Int("failed", result.Count(StatusFailed)).
		Int("cancelled", result.Count(StatusCancelled)).
		Msg("batch finished")
	return result
}
