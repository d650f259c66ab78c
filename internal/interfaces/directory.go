package interfaces

import (
	"context"

	"github.com/shopwise/dealagent/internal/models"
)

// DirectoryService serves an immutable snapshot of the external seller
// directory. A snapshot never changes under a caller; Refresh swaps in a
// new one and announces it on the event bus.
type DirectoryService interface {
	// Snapshot returns the current directory entries in stable order.
	// An empty snapshot means the directory has not loaded yet.
	Snapshot() []models.SellerDirectoryEntry

	// Refresh re-fetches the directory and publishes EventDirectoryRefreshed
	// when the snapshot changed
	Refresh(ctx context.Context) error

	// Start begins the periodic refresh schedule
	Start(ctx context.Context) error

	// Stop halts the periodic refresh schedule
	Stop()
}
