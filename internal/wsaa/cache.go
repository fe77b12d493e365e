package wsaa

import (
	"sync"

	"github.com/rezonia/wsfe-client/internal/model"
)

// TicketCache stores the current ticket per account. Implementations must
// be safe for concurrent use; Set replaces any previous ticket wholesale.
type TicketCache interface {
	Get(accountID string) (model.SessionTicket, bool)
	Set(accountID string, ticket model.SessionTicket)
	Delete(accountID string)
}

// MemoryTicketCache is an in-process TicketCache
type MemoryTicketCache struct {
	mu      sync.RWMutex
	tickets map[string]model.SessionTicket
}

// NewMemoryTicketCache creates an empty cache
func NewMemoryTicketCache() *MemoryTicketCache {
	return &MemoryTicketCache{
		tickets: make(map[string]model.SessionTicket),
	}
}

// Get returns the cached ticket, expired or not
func (c *MemoryTicketCache) Get(accountID string) (model.SessionTicket, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tickets[accountID]
	return t, ok
}

// Set replaces the account's ticket
func (c *MemoryTicketCache) Set(accountID string, ticket model.SessionTicket) {
	c.mu.Lock()
	c.tickets[accountID] = ticket
	c.mu.Unlock()
}

// Delete drops the account's ticket
func (c *MemoryTicketCache) Delete(accountID string) {
	c.mu.Lock()
	delete(c.tickets, accountID)
	c.mu.Unlock()
}

// Size returns the number of cached tickets
func (c *MemoryTicketCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tickets)
}
