package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver exports settled on-ledger history to cold storage. Archival never
// mutates the ledger; pruning is a separate, explicit step taken only after an
// archive has been verified.
type Archiver interface {
	// ArchiveSettled uploads all markets resolved before the cutoff, together
	// with their positions, and returns the object path.
	ArchiveSettled(ctx context.Context, before time.Time) (string, error)
	// ArchiveAudit uploads the audit log and returns the object path.
	ArchiveAudit(ctx context.Context, before time.Time) (string, error)
}
