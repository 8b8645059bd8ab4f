package s3blob_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3blob "github.com/Mardiprk/Mini-MetaDAO/internal/blob/s3"
	"github.com/Mardiprk/Mini-MetaDAO/internal/domain"
	"github.com/Mardiprk/Mini-MetaDAO/internal/store/memory"
)

// captureWriter records every uploaded object in memory.
type captureWriter struct {
	objects map[string][]byte
	types   map[string]string
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (w *captureWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = body
	w.types[path] = contentType
	return nil
}

func seedSettledMarket(t *testing.T, ledger *memory.Ledger, proposal domain.Address, closesAt time.Time) domain.Market {
	t.Helper()
	ctx := context.Background()

	m := domain.Market{
		Address:    domain.MarketAddress(proposal),
		Proposal:   proposal,
		YesPool:    9_800_000,
		NoPool:     4_900_000,
		FeePool:    300_000,
		ClosesAt:   closesAt,
		Resolved:   true,
		OutcomeYes: true,
	}
	require.NoError(t, ledger.PutMarket(ctx, m))
	require.NoError(t, ledger.PutPosition(ctx, domain.Position{
		Address: domain.PositionAddress(m.Address, "alice"),
		Market:  m.Address,
		Bettor:  "alice",
		Amount:  9_800_000,
		IsYes:   true,
	}))
	return m
}

func TestArchiveSettled(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedger()
	audit := memory.NewAuditStore()
	writer := newCaptureWriter()
	archiver := s3blob.NewArchiver(writer, ledger, audit)

	closesAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := seedSettledMarket(t, ledger, "prop-addr-1", closesAt)

	// A market still open at the cutoff is not archived.
	require.NoError(t, ledger.PutMarket(ctx, domain.Market{
		Address:  domain.MarketAddress("prop-addr-2"),
		Proposal: "prop-addr-2",
		ClosesAt: closesAt.Add(90 * 24 * time.Hour),
	}))

	before := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	path, err := archiver.ArchiveSettled(ctx, before)
	require.NoError(t, err)
	assert.Equal(t, "archive/settled/2026-04.jsonl", path)
	assert.Equal(t, "application/x-ndjson", writer.types[path])

	lines := bytes.Split(bytes.TrimSpace(writer.objects[path]), []byte("\n"))
	require.Len(t, lines, 1)

	var record struct {
		Market    domain.Market     `json:"market"`
		Positions []domain.Position `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, m.Address, record.Market.Address)
	assert.Equal(t, uint64(9_800_000), record.Market.YesPool)
	require.Len(t, record.Positions, 1)
	assert.Equal(t, domain.Address("alice"), record.Positions[0].Bettor)

	// The archival itself leaves an audit trail.
	entries, err := audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "archive.settled", entries[0].Event)
}

func TestArchiveSettledEmpty(t *testing.T) {
	writer := newCaptureWriter()
	archiver := s3blob.NewArchiver(writer, memory.NewLedger(), memory.NewAuditStore())

	path, err := archiver.ArchiveSettled(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Empty(t, writer.objects)
}

func TestArchiveAudit(t *testing.T) {
	ctx := context.Background()
	audit := memory.NewAuditStore()
	writer := newCaptureWriter()
	archiver := s3blob.NewArchiver(writer, memory.NewLedger(), audit)

	require.NoError(t, audit.Log(ctx, "dao.initialized", map[string]any{"admin": "admin-wallet"}))
	require.NoError(t, audit.Log(ctx, "proposal.created", map[string]any{"proposal_id": float64(1)}))

	before := time.Now().UTC().Add(time.Hour)
	path, err := archiver.ArchiveAudit(ctx, before)
	require.NoError(t, err)
	assert.Equal(t, "archive/audit/"+before.Format("2006-01")+".jsonl", path)

	lines := bytes.Split(bytes.TrimSpace(writer.objects[path]), []byte("\n"))
	assert.Len(t, lines, 2)

	// Entries created after the cutoff are excluded.
	path, err = archiver.ArchiveAudit(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, path)
}
