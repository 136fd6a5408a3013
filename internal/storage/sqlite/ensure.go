package sqlite

import (
	"github.com/pointerquest/engine/internal/progress"
)

// Ensure the SQLite store implements the persistence interface.
var _ progress.SnapshotStore = (*SnapshotStore)(nil)
