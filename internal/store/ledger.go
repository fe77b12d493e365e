package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rezonia/wsfe-client/internal/model"
)

// Ledger errors
var (
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrAlreadyAuthorized = errors.New("invoice already authorized")
	ErrInvoiceIDRequired = errors.New("invoice id is required")
)

// Ledger owns invoices. It hands out what an authorization needs and
// records the outcome; the client itself persists nothing else.
type Ledger interface {
	NextDraftContext(ctx context.Context, invoiceID string) (model.Draft, error)
	RecordAuthorization(ctx context.Context, invoiceID string, result model.AuthorizationResult, proof model.ProofArtifacts) error
}

// LedgerEntry is one invoice and, once authorized, its outcome
type LedgerEntry struct {
	InvoiceID    string                     `json:"invoice_id"`
	AccountID    string                     `json:"account_id"`
	Draft        model.Draft                `json:"draft"`
	Result       *model.AuthorizationResult `json:"result,omitempty"`
	Proof        *model.ProofArtifacts      `json:"proof,omitempty"`
	AuthorizedAt time.Time                  `json:"authorized_at,omitempty"`
}

// Authorized reports whether the entry holds an approved result
func (e LedgerEntry) Authorized() bool {
	return e.Result != nil && e.Result.Approved
}

// MemoryLedger is a thread-safe in-memory Ledger
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[string]*LedgerEntry
	now     func() time.Time
}

// NewMemoryLedger creates an empty ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string]*LedgerEntry),
		now:     time.Now,
	}
}

// Put stores a draft for invoiceID, replacing an unauthorized one
func (l *MemoryLedger) Put(invoiceID, accountID string, draft model.Draft) error {
	if invoiceID == "" {
		return ErrInvoiceIDRequired
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.entries[invoiceID]; ok && existing.Authorized() {
		return fmt.Errorf("%w: %s", ErrAlreadyAuthorized, invoiceID)
	}
	l.entries[invoiceID] = &LedgerEntry{InvoiceID: invoiceID, AccountID: accountID, Draft: draft}
	return nil
}

// NextDraftContext returns the draft of an invoice that is not yet authorized
func (l *MemoryLedger) NextDraftContext(_ context.Context, invoiceID string) (model.Draft, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[invoiceID]
	if !ok {
		return model.Draft{}, fmt.Errorf("%w: %s", ErrInvoiceNotFound, invoiceID)
	}
	if entry.Authorized() {
		return model.Draft{}, fmt.Errorf("%w: %s", ErrAlreadyAuthorized, invoiceID)
	}
	return entry.Draft, nil
}

// RecordAuthorization stores the approved outcome for invoiceID
func (l *MemoryLedger) RecordAuthorization(_ context.Context, invoiceID string, result model.AuthorizationResult, proof model.ProofArtifacts) error {
	if !result.Approved || result.CAE == "" {
		return model.NewValidationError("result", result.Approved, "approved", "only approved authorizations are recorded")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[invoiceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvoiceNotFound, invoiceID)
	}
	if entry.Authorized() {
		return fmt.Errorf("%w: %s", ErrAlreadyAuthorized, invoiceID)
	}
	entry.Result = &result
	entry.Proof = &proof
	entry.AuthorizedAt = l.now()
	return nil
}

// Get returns a copy of the entry for invoiceID
func (l *MemoryLedger) Get(invoiceID string) (LedgerEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.entries[invoiceID]
	if !ok {
		return LedgerEntry{}, false
	}
	return *entry, true
}

// Stats returns the total number of entries and how many are authorized
func (l *MemoryLedger) Stats() (int, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	authorized := 0
	for _, e := range l.entries {
		if e.Authorized() {
			authorized++
		}
	}
	return len(l.entries), authorized
}

// Pending lists unauthorized invoice ids for accountID in id order
func (l *MemoryLedger) Pending(accountID string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var ids []string
	for id, e := range l.entries {
		if e.AccountID == accountID && !e.Authorized() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
