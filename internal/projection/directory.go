package projection

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownSubAccount is returned when no owning account is known for a
// sub-account id.
var ErrUnknownSubAccount = errors.New("unknown sub-account")

// Directory is the read model that resolves a sub-account id to its owning
// account id. It is eventually consistent: entries appear when the projector
// observes the corresponding SubAccountCreated event.
type Directory interface {
	// ResolveOwner returns the owning account id of the sub-account, or
	// ErrUnknownSubAccount.
	ResolveOwner(ctx context.Context, subAccountID uuid.UUID) (uuid.UUID, error)

	// Record stores the ownership mapping. Idempotent.
	Record(ctx context.Context, subAccountID, accountID uuid.UUID) error
}

// MemoryDirectory keeps the mapping in process memory. Used in tests and for
// wiring without external infrastructure.
type MemoryDirectory struct {
	mu     sync.RWMutex
	owners map[uuid.UUID]uuid.UUID
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		owners: make(map[uuid.UUID]uuid.UUID),
	}
}

// ResolveOwner implements Directory.
func (d *MemoryDirectory) ResolveOwner(ctx context.Context, subAccountID uuid.UUID) (uuid.UUID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	accountID, ok := d.owners[subAccountID]
	if !ok {
		return uuid.Nil, ErrUnknownSubAccount
	}
	return accountID, nil
}

// Record implements Directory.
func (d *MemoryDirectory) Record(ctx context.Context, subAccountID, accountID uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.owners[subAccountID] = accountID
	return nil
}
