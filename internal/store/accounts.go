// Package store holds the collaborators the emitter reads from and writes to:
// account credentials, the invoice ledger and persisted session tickets.
package store

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rezonia/wsfe-client/internal/config"
	"github.com/rezonia/wsfe-client/internal/model"
)

// AccountStore hands out the credential and tax id for an account
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (model.Account, error)
}

// CredentialChecker rejects unusable key material before it reaches the authority
type CredentialChecker interface {
	Check(ctx context.Context, account model.Account) error
}

// FileAccountStore reads account key material from the PEM files named in config
type FileAccountStore struct {
	cfg     *config.ParsedConfig
	checker CredentialChecker

	mu       sync.RWMutex
	accounts map[string]model.Account
}

// NewFileAccountStore creates a store over cfg's accounts. checker may be nil.
func NewFileAccountStore(cfg *config.ParsedConfig, checker CredentialChecker) *FileAccountStore {
	return &FileAccountStore{
		cfg:      cfg,
		checker:  checker,
		accounts: make(map[string]model.Account),
	}
}

// GetAccount loads and caches the account. Every failure is an AuthCredentialError.
func (s *FileAccountStore) GetAccount(ctx context.Context, id string) (model.Account, error) {
	s.mu.RLock()
	account, ok := s.accounts[id]
	s.mu.RUnlock()
	if ok {
		return account, nil
	}

	entry, ok := s.cfg.Account(id)
	if !ok {
		return model.Account{}, model.NewAuthCredentialError(id, "account is not configured", nil)
	}

	keyPEM, err := os.ReadFile(entry.KeyFile)
	if err != nil {
		return model.Account{}, model.NewAuthCredentialError(id, "failed to read private key", err)
	}
	certPEM, err := os.ReadFile(entry.CertFile)
	if err != nil {
		return model.Account{}, model.NewAuthCredentialError(id, "failed to read certificate", err)
	}

	account = model.Account{
		ID:   id,
		CUIT: entry.CUIT,
		Credential: model.Credential{
			PrivateKeyPEM:  keyPEM,
			CertificatePEM: certPEM,
			Environment:    s.cfg.AccountEnvironment(entry),
		},
	}
	if err := account.Validate(); err != nil {
		return model.Account{}, err
	}

	if s.checker != nil {
		if err := s.checker.Check(ctx, account); err != nil {
			return model.Account{}, err
		}
	}

	s.mu.Lock()
	s.accounts[id] = account
	s.mu.Unlock()
	return account, nil
}

// IDs lists the configured account ids in file order
func (s *FileAccountStore) IDs() []string {
	ids := make([]string, 0, len(s.cfg.Accounts))
	for _, a := range s.cfg.Accounts {
		ids = append(ids, a.ID)
	}
	return ids
}

// StaticAccountStore serves accounts held in memory
type StaticAccountStore map[string]model.Account

// GetAccount returns the account with id
func (s StaticAccountStore) GetAccount(_ context.Context, id string) (model.Account, error) {
	account, ok := s[id]
	if !ok {
		return model.Account{}, model.NewAuthCredentialError(id, fmt.Sprintf("account %q is not configured", id), nil)
	}
	return account, nil
}
