// Package export publishes audit trail documents to a blob store so they can
// be archived or handed to auditors outside the application.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"opsledger/internal/blob"
	"opsledger/pkg/domain"
)

// Exporter renders the audit trail as a JSON document and writes it to a
// blob store under a timestamped key.
type Exporter struct {
	store domain.PersistentStore
	blobs blob.Store
	nowFn func() time.Time
}

// NewExporter constructs an exporter over the given store and blob backend.
func NewExporter(store domain.PersistentStore, blobs blob.Store) *Exporter {
	return &Exporter{
		store: store,
		blobs: blobs,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the export timestamp source. Intended for tests.
func (e *Exporter) SetClock(fn func() time.Time) {
	if fn != nil {
		e.nowFn = fn
	}
}

// RenderAudit serializes audit entries as an indented JSON array. An empty
// trail renders as an empty array, not null.
func RenderAudit(entries []domain.AuditEntry) ([]byte, error) {
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	return json.MarshalIndent(entries, "", "  ")
}

// ExportAudit writes the current audit trail to the blob store and returns
// the stored object's metadata. Keys follow audit/<RFC3339 timestamp>.json,
// so repeated exports never collide.
func (e *Exporter) ExportAudit(ctx context.Context) (blob.Info, error) {
	entries := e.store.ListAudit()
	payload, err := RenderAudit(entries)
	if err != nil {
		return blob.Info{}, fmt.Errorf("render audit: %w", err)
	}
	key := fmt.Sprintf("audit/%s.json", e.nowFn().Format("2006-01-02T15-04-05Z"))
	info, err := e.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"entries": fmt.Sprintf("%d", len(entries))},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store audit export: %w", err)
	}
	return info, nil
}
