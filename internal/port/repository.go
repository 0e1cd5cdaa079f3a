package port

import (
	"github.com/adrianov/diskadmit/internal/domain"
)

// TransferRepository persists per-transfer admission state so that paused
// transfers survive a restart. The dialog guard flag is deliberately not
// part of the stored state.
type TransferRepository interface {
	// Upsert inserts or updates a transfer record.
	Upsert(t *domain.Transfer) error

	// Delete removes a transfer record.
	Delete(id string) error

	// List returns all stored transfers in insertion order.
	List() ([]*domain.Transfer, error)
}
