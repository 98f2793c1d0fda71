package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"opsledger/pkg/domain"
)

func TestStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opsledger.db")

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if got := len(store.ListInventory()); got != 2 {
		t.Fatalf("expected seeded inventory, got %d items", got)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateRequest(domain.PurchaseRequest{
			Requester: "site.alex",
			Lines:     []domain.RequestLine{{Item: "Cement 40kg", SKU: "CEM-40", Qty: 5}},
		}); err != nil {
			return err
		}
		tx.AppendAudit(domain.AuditCreateRequest, "site.alex", nil)
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	requests := reopened.ListRequests()
	if len(requests) != 1 {
		t.Fatalf("expected 1 request after reopen, got %d", len(requests))
	}
	if requests[0].Requester != "site.alex" || requests[0].Status != domain.StatusPending {
		t.Fatalf("unexpected request %+v", requests[0])
	}
	if got := len(reopened.ListAudit()); got != 1 {
		t.Fatalf("expected 1 audit entry after reopen, got %d", got)
	}
}

func TestUnreadableDocumentFallsBackToSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opsledger.db")

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.DB().Exec(`UPDATE state SET payload = ? WHERE key = ?`, []byte("{not json"), StateKey); err != nil {
		t.Fatalf("corrupt payload: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var warned bool
	reopened, err := NewStore(path, nil, WithLogf(func(format string, args ...any) { warned = true }))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	if !warned {
		t.Fatalf("expected load warning")
	}
	items := reopened.ListInventory()
	if len(items) != 2 || items[0].ID != "i1" {
		t.Fatalf("expected seed inventory, got %+v", items)
	}
	if got := len(reopened.ListUsers()); got != 2 {
		t.Fatalf("expected 2 seed users, got %d", got)
	}
}

func TestSnapshotFailureKeepsInMemoryCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opsledger.db")

	var warned bool
	store, err := NewStore(path, nil, WithLogf(func(format string, args ...any) { warned = true }))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.DB().Close(); err != nil {
		t.Fatalf("close db handle: %v", err)
	}

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateInventoryItem(domain.InventoryItem{Name: "Gravel 20mm", SKU: "GRV-20", OnHand: 10})
		return err
	})
	if err != nil {
		t.Fatalf("commit should survive a failed snapshot write: %v", err)
	}
	if !warned {
		t.Fatalf("expected snapshot failure warning")
	}
	if got := len(store.ListInventory()); got != 3 {
		t.Fatalf("expected 3 items in memory, got %d", got)
	}
}
