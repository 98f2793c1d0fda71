package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"opsledger/internal/infra/persistence/memory"
	"opsledger/pkg/domain"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewSeededStore(NewDefaultRulesEngine())
	store.SetClock(func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) })
	seq := 0
	store.SetIDFunc(func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	})
	return NewService(store), store
}

func signIn(t *testing.T, svc *Service, username string) Session {
	t.Helper()
	session, err := svc.Authenticate(context.Background(), username, "password")
	if err != nil {
		t.Fatalf("Authenticate %s: %v", username, err)
	}
	return session
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Authenticate(ctx, "site.alex", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody", "password"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if svc.CurrentSession() != nil {
		t.Fatalf("failed sign-in should not establish a session")
	}
	if got := len(svc.ListAudit(ctx)); got != 0 {
		t.Fatalf("failed sign-in should not be audited, got %d entries", got)
	}
}

func TestAuthenticateEstablishesSessionAndAudits(t *testing.T) {
	svc, _ := newTestService(t)
	session := signIn(t, svc, "site.alex")

	if session.Role != domain.RoleSite || session.UserID != "u1" {
		t.Fatalf("unexpected session %+v", session)
	}
	current := svc.CurrentSession()
	if current == nil || current.Username != "site.alex" {
		t.Fatalf("session not persisted: %+v", current)
	}
	audit := svc.ListAudit(context.Background())
	if len(audit) != 1 || audit[0].Action != domain.AuditLogin || audit[0].By != "site.alex" {
		t.Fatalf("unexpected audit %+v", audit)
	}
}

func TestSignOut(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.SignOut(ctx); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	signIn(t, svc, "site.alex")
	if err := svc.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if svc.CurrentSession() != nil {
		t.Fatalf("session should be cleared")
	}
	audit := svc.ListAudit(ctx)
	if audit[0].Action != domain.AuditLogout {
		t.Fatalf("expected logout entry first, got %+v", audit[0])
	}
}

func TestInventoryMaintenance(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	signIn(t, svc, "office.mia")

	created, _, err := svc.AddInventoryItem(ctx, InventoryItem{Name: "Gravel 20mm", SKU: "GRV-20", OnHand: 10, Min: 5, Max: 50})
	if err != nil {
		t.Fatalf("AddInventoryItem: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated ID")
	}

	updated, _, err := svc.UpdateInventoryItem(ctx, created.ID, func(item *InventoryItem) error {
		item.OnHand = 25
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateInventoryItem: %v", err)
	}
	if updated.OnHand != 25 {
		t.Fatalf("update not applied: %+v", updated)
	}

	if _, err := svc.InventoryItemByID(ctx, created.ID); err != nil {
		t.Fatalf("InventoryItemByID: %v", err)
	}

	if _, err := svc.RemoveInventoryItem(ctx, created.ID); err != nil {
		t.Fatalf("RemoveInventoryItem: %v", err)
	}
	if _, err := svc.InventoryItemByID(ctx, created.ID); err == nil {
		t.Fatalf("expected not found after removal")
	}

	var nfe domain.NotFoundError
	if _, _, err := svc.UpdateInventoryItem(ctx, "missing", func(*InventoryItem) error { return nil }); !errors.As(err, &nfe) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	audit := svc.ListAudit(ctx)
	wantActions := []string{domain.AuditRemoveInventory, domain.AuditUpdateInventory, domain.AuditAddInventory, domain.AuditLogin}
	if len(audit) != len(wantActions) {
		t.Fatalf("expected %d audit entries, got %d", len(wantActions), len(audit))
	}
	for i, want := range wantActions {
		if audit[i].Action != want {
			t.Fatalf("audit[%d] = %s, want %s", i, audit[i].Action, want)
		}
	}
	update, add := audit[1].Details, audit[2].Details
	if add["id"] != created.ID || add["name"] != "Gravel 20mm" || add["sku"] != "GRV-20" {
		t.Fatalf("unexpected add details %+v", add)
	}
	if update["id"] != created.ID || update["name"] != "Gravel 20mm" || update["sku"] != "GRV-20" {
		t.Fatalf("unexpected update details %+v", update)
	}
}

func TestCreateRequestRequiresSessionAndLines(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, _, err := svc.CreateRequest(ctx, []RequestLine{{Item: "Cement 40kg", Qty: 1}}); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	signIn(t, svc, "site.alex")
	if _, _, err := svc.CreateRequest(ctx, nil); !errors.Is(err, domain.ErrEmptyLines) {
		t.Fatalf("expected ErrEmptyLines, got %v", err)
	}
	if _, _, err := svc.CreateRequest(ctx, []RequestLine{{Item: "  ", Qty: 5}, {Item: "Cement 40kg", Qty: 0}}); !errors.Is(err, domain.ErrEmptyLines) {
		t.Fatalf("expected ErrEmptyLines for unusable lines, got %v", err)
	}

	created, _, err := svc.CreateRequest(ctx, []RequestLine{
		{Item: " Cement 40kg ", SKU: " CEM-40 ", Qty: 10, UnitCost: "7.50"},
		{Item: "", Qty: 3},
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if created.Status != domain.StatusPending || created.Requester != "site.alex" {
		t.Fatalf("unexpected request %+v", created)
	}
	if len(created.Lines) != 1 || created.Lines[0].Item != "Cement 40kg" || created.Lines[0].SKU != "CEM-40" {
		t.Fatalf("lines not cleaned: %+v", created.Lines)
	}

	audit := svc.ListAudit(ctx)
	if audit[0].Action != domain.AuditCreateRequest {
		t.Fatalf("expected create audit, got %+v", audit[0])
	}
	if audit[0].Details["prId"] != created.ID || audit[0].Details["linesCount"] != 1 {
		t.Fatalf("unexpected audit details %+v", audit[0].Details)
	}
}

func TestApproveRequestEnforcesRoleAndState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	signIn(t, svc, "site.alex")
	created, _, err := svc.CreateRequest(ctx, []RequestLine{{Item: "Cement 40kg", SKU: "CEM-40", Qty: 10}})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	if _, _, err := svc.ApproveRequest(ctx, created.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("site role should not approve, got %v", err)
	}

	signIn(t, svc, "office.mia")
	if _, _, err := svc.ApproveRequest(ctx, "missing"); err == nil {
		t.Fatalf("expected not found")
	}

	approved, _, err := svc.ApproveRequest(ctx, created.ID)
	if err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}
	if approved.Status != domain.StatusApproved {
		t.Fatalf("unexpected status %s", approved.Status)
	}

	var te domain.TransitionError
	if _, _, err := svc.ApproveRequest(ctx, created.ID); !errors.As(err, &te) {
		t.Fatalf("expected TransitionError on double approve, got %v", err)
	}
	if te.From != domain.StatusApproved || te.To != domain.StatusApproved {
		t.Fatalf("unexpected transition detail %+v", te)
	}
}

func TestDeliverRequestReconcilesInventory(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	signIn(t, svc, "site.alex")
	created, _, err := svc.CreateRequest(ctx, []RequestLine{
		{Item: "cement 40KG", Qty: 40},               // name match, case-insensitive
		{Item: "Steel Mesh", SKU: "REB-4", Qty: 20},  // sku match wins over unknown name
		{Item: "Pipe 50mm", SKU: "PIP-50", Qty: 12},  // no match, new item
	})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	var te domain.TransitionError
	if _, _, _, err := svc.DeliverRequest(ctx, created.ID); !errors.As(err, &te) {
		t.Fatalf("expected TransitionError for pending request, got %v", err)
	}

	signIn(t, svc, "office.mia")
	if _, _, err := svc.ApproveRequest(ctx, created.ID); err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}

	delivered, record, _, err := svc.DeliverRequest(ctx, created.ID)
	if err != nil {
		t.Fatalf("DeliverRequest: %v", err)
	}
	if delivered.Status != domain.StatusDelivered {
		t.Fatalf("status = %s", delivered.Status)
	}
	if record.RequestID != created.ID || record.ReceivedBy != "office.mia" || len(record.Lines) != 3 {
		t.Fatalf("unexpected delivery %+v", record)
	}

	byID := map[string]InventoryItem{}
	var items []InventoryItem
	for _, item := range svc.ListInventory(ctx) {
		byID[item.ID] = item
		items = append(items, item)
	}
	if byID["i1"].OnHand != 100 {
		t.Fatalf("cement onhand = %d, want 100", byID["i1"].OnHand)
	}
	if byID["i2"].OnHand != 370 {
		t.Fatalf("rebar onhand = %d, want 370", byID["i2"].OnHand)
	}
	if len(items) != 3 {
		t.Fatalf("expected new item created, have %d", len(items))
	}
	newItem := items[2]
	if newItem.Name != "Pipe 50mm" || newItem.SKU != "PIP-50" || newItem.OnHand != 12 || newItem.Min != 0 || newItem.Max != 0 {
		t.Fatalf("unexpected new item %+v", newItem)
	}

	audit := svc.ListAudit(ctx)
	if audit[0].Action != domain.AuditDeliverRequest || audit[0].Details["prId"] != created.ID {
		t.Fatalf("unexpected deliver audit %+v", audit[0])
	}

	if _, _, _, err := svc.DeliverRequest(ctx, created.ID); !errors.As(err, &te) {
		t.Fatalf("expected TransitionError on double deliver, got %v", err)
	}
}

func TestDeliverFallsBackToSystemActor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	signIn(t, svc, "site.alex")
	created, _, err := svc.CreateRequest(ctx, []RequestLine{{Item: "Cement 40kg", Qty: 5}})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	signIn(t, svc, "office.mia")
	if _, _, err := svc.ApproveRequest(ctx, created.ID); err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}
	if err := svc.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	_, record, _, err := svc.DeliverRequest(ctx, created.ID)
	if err != nil {
		t.Fatalf("DeliverRequest: %v", err)
	}
	if record.ReceivedBy != domain.SystemActor {
		t.Fatalf("receivedBy = %s, want %s", record.ReceivedBy, domain.SystemActor)
	}
	audit := svc.ListAudit(ctx)
	if audit[0].By != domain.SystemActor {
		t.Fatalf("audit actor = %s, want %s", audit[0].By, domain.SystemActor)
	}
}

func TestClearAudit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if removed, err := svc.ClearAudit(ctx); err != nil || removed != 0 {
		t.Fatalf("clearing an empty trail: removed=%d err=%v", removed, err)
	}

	signIn(t, svc, "office.mia")
	if _, _, err := svc.AddInventoryItem(ctx, InventoryItem{Name: "Sand"}); err != nil {
		t.Fatalf("AddInventoryItem: %v", err)
	}

	removed, err := svc.ClearAudit(ctx)
	if err != nil {
		t.Fatalf("ClearAudit: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if got := len(svc.ListAudit(ctx)); got != 0 {
		t.Fatalf("audit should be empty, got %d", got)
	}
}

func TestSnapshotAggregatesDashboard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	signIn(t, svc, "site.alex")
	first, _, err := svc.CreateRequest(ctx, []RequestLine{{Item: "Cement 40kg", Qty: 10}})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	second, _, err := svc.CreateRequest(ctx, []RequestLine{{Item: "Rebar #4", SKU: "REB-4", Qty: 50}})
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	signIn(t, svc, "office.mia")
	if _, _, err := svc.ApproveRequest(ctx, second.ID); err != nil {
		t.Fatalf("ApproveRequest: %v", err)
	}

	snap, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Session == nil || snap.Session.Username != "office.mia" {
		t.Fatalf("unexpected session %+v", snap.Session)
	}
	if snap.Stats.SKUs != 2 || snap.Stats.UnitsOnHand != 410 {
		t.Fatalf("unexpected inventory stats %+v", snap.Stats)
	}
	if snap.Stats.PendingRequests != 1 || snap.Stats.AwaitingDelivery != 1 {
		t.Fatalf("unexpected workflow stats %+v", snap.Stats)
	}

	rows := map[string]RequestRow{}
	for _, row := range snap.Requests {
		rows[row.ID] = row
	}
	if !rows[first.ID].CanApprove || rows[first.ID].CanDeliver {
		t.Fatalf("pending row actions wrong: %+v", rows[first.ID])
	}
	if rows[second.ID].CanApprove || !rows[second.ID].CanDeliver {
		t.Fatalf("approved row actions wrong: %+v", rows[second.ID])
	}

	if err := svc.SignOut(ctx); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	signedOut, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	for _, row := range signedOut.Requests {
		if row.CanApprove {
			t.Fatalf("approval offered without a session: %+v", row)
		}
		if row.Status == domain.StatusApproved && !row.CanDeliver {
			t.Fatalf("delivery withheld without a session: %+v", row)
		}
	}
	signIn(t, svc, "office.mia")

	if len(snap.RecentActivity) != len(snap.Audit) {
		t.Fatalf("recent activity should carry all %d entries, got %d", len(snap.Audit), len(snap.RecentActivity))
	}

	// Push the audit trail past the activity cap.
	for i := 0; i < 10; i++ {
		if _, _, err := svc.AddInventoryItem(ctx, InventoryItem{Name: fmt.Sprintf("Item %d", i)}); err != nil {
			t.Fatalf("AddInventoryItem: %v", err)
		}
	}
	snap, err = svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.RecentActivity) != 10 {
		t.Fatalf("recent activity should cap at 10, got %d", len(snap.RecentActivity))
	}
	if snap.RecentActivity[0].ID != snap.Audit[0].ID {
		t.Fatalf("recent activity should lead with the newest entry")
	}
}
