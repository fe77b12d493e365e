package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rezonia/wsfe-client/internal/model"
	"github.com/rezonia/wsfe-client/internal/wsaa"
)

var _ wsaa.TicketCache = (*FileTicketCache)(nil)

type ticketRecord struct {
	Token     string    `yaml:"token"`
	Sign      string    `yaml:"sign"`
	ExpiresAt time.Time `yaml:"expires_at"`
}

// FileTicketCache keeps session tickets in a YAML file so separate CLI runs
// reuse a ticket instead of authenticating again. The file holds live
// credentials and is written with mode 0600.
type FileTicketCache struct {
	path   string
	logger zerolog.Logger

	mu      sync.RWMutex
	tickets map[string]ticketRecord
}

// NewFileTicketCache loads path if it exists
func NewFileTicketCache(path string, logger zerolog.Logger) (*FileTicketCache, error) {
	c := &FileTicketCache{
		path:    path,
		logger:  logger,
		tickets: make(map[string]ticketRecord),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return c, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read ticket cache: %w", err)
	}
	if err := yaml.Unmarshal(data, &c.tickets); err != nil {
		return nil, fmt.Errorf("failed to parse ticket cache: %w", err)
	}
	if c.tickets == nil {
		c.tickets = make(map[string]ticketRecord)
	}
	return c, nil
}

// Get returns the stored ticket, expired or not
func (c *FileTicketCache) Get(accountID string) (model.SessionTicket, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.tickets[accountID]
	if !ok {
		return model.SessionTicket{}, false
	}
	return model.SessionTicket{Token: r.Token, Sign: r.Sign, ExpiresAt: r.ExpiresAt}, true
}

// Set replaces the account's ticket and rewrites the file
func (c *FileTicketCache) Set(accountID string, ticket model.SessionTicket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tickets[accountID] = ticketRecord{Token: ticket.Token, Sign: ticket.Sign, ExpiresAt: ticket.ExpiresAt}
	c.persist()
}

// Delete drops the account's ticket and rewrites the file
func (c *FileTicketCache) Delete(accountID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tickets[accountID]; !ok {
		return
	}
	delete(c.tickets, accountID)
	c.persist()
}

// persist writes through a temp file and rename. Callers hold the lock.
// Write failures are logged; the ticket stays cached in memory.
func (c *FileTicketCache) persist() {
	if err := c.write(); err != nil {
		c.logger.Warn().Err(err).Str("path", c.path).Msg("failed to persist ticket cache")
	}
}

func (c *FileTicketCache) write() error {
	data, err := yaml.Marshal(c.tickets)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".tickets-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}
