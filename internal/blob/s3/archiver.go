package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
)

// SettledMarketStore provides the read access the archiver needs. The ledger
// implementations satisfy it implicitly.
type SettledMarketStore interface {
	ListSettledMarkets(ctx context.Context, before time.Time) ([]domain.Market, error)
	ListPositions(ctx context.Context, market domain.Address) ([]domain.Position, error)
}

// auditListPage is the page size used when draining the audit log.
const auditListPage = 500

// multipartThreshold switches uploads to the multipart path; archives below
// it go up in a single PutObject.
const multipartThreshold = 8 * 1024 * 1024

// multipartWriter is the optional fast path for large archive files. The S3
// Writer implements it; test fakes need not.
type multipartWriter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// ArchiveImpl implements domain.Archiver by querying the ledger for settled
// markets, serializing them to JSONL, and uploading the result to S3.
//
// Pruning of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer  domain.BlobWriter
	markets SettledMarketStore
	audit   domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, markets SettledMarketStore, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		markets: markets,
		audit:   audit,
	}
}

// settledRecord is one JSONL line of the settlement archive: a resolved
// market together with every position taken on it.
type settledRecord struct {
	Market    domain.Market     `json:"market"`
	Positions []domain.Position `json:"positions"`
}

// ArchiveSettled queries all markets resolved before the cutoff, serializes
// each market with its positions to JSONL, and uploads the file to S3 at
// archive/settled/YYYY-MM.jsonl. The archival event is recorded in the audit
// log and the object path is returned. An empty cutoff window produces no
// upload and an empty path.
func (a *ArchiveImpl) ArchiveSettled(ctx context.Context, before time.Time) (string, error) {
	markets, err := a.markets.ListSettledMarkets(ctx, before)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive settled query: %w", err)
	}
	if len(markets) == 0 {
		return "", nil
	}

	records := make([]settledRecord, 0, len(markets))
	for _, m := range markets {
		positions, err := a.markets.ListPositions(ctx, m.Address)
		if err != nil {
			return "", fmt.Errorf("s3blob: archive settled positions %s: %w", m.Address, err)
		}
		records = append(records, settledRecord{Market: m, Positions: positions})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive settled marshal: %w", err)
	}

	path := archivePath("settled", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return "", fmt.Errorf("s3blob: archive settled upload: %w", err)
	}

	if err := a.audit.Log(ctx, "archive.settled", map[string]any{
		"path":   path,
		"count":  len(records),
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return path, fmt.Errorf("s3blob: archive settled audit log: %w", err)
	}

	return path, nil
}

// ArchiveAudit drains the audit log page by page, serializes the entries to
// JSONL, and uploads the file to S3 at archive/audit/YYYY-MM.jsonl. The
// object path is returned; an empty log produces no upload and an empty path.
func (a *ArchiveImpl) ArchiveAudit(ctx context.Context, before time.Time) (string, error) {
	var entries []domain.AuditEntry
	for offset := 0; ; offset += auditListPage {
		page, err := a.audit.List(ctx, domain.ListOpts{Limit: auditListPage, Offset: offset})
		if err != nil {
			return "", fmt.Errorf("s3blob: archive audit query: %w", err)
		}
		for _, e := range page {
			if e.CreatedAt.Before(before) {
				entries = append(entries, e)
			}
		}
		if len(page) < auditListPage {
			break
		}
	}
	if len(entries) == 0 {
		return "", nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return "", fmt.Errorf("s3blob: archive audit upload: %w", err)
	}
	return path, nil
}

// upload sends an archive file to blob storage, using the multipart path for
// payloads over the threshold when the writer supports it.
func (a *ArchiveImpl) upload(ctx context.Context, path string, buf []byte) error {
	if mw, ok := a.writer.(multipartWriter); ok && int64(len(buf)) >= multipartThreshold {
		return mw.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/settled/2026-03.jsonl
//	archive/audit/2026-03.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
