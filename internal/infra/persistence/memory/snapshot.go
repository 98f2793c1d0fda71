package memory

import (
	"opsledger/pkg/domain"
)

// Snapshot is the serializable form of the full application state. The field
// names match the persisted document layout exactly; durable stores marshal
// this struct as a single JSON payload.
type Snapshot struct {
	Users            []User            `json:"users"`
	CurrentUser      *Session          `json:"currentUser"`
	Inventory        []InventoryItem   `json:"inventory"`
	PurchaseRequests []PurchaseRequest `json:"purchaseRequests"`
	Deliveries       []Delivery        `json:"deliveries"`
	Audit            []AuditEntry      `json:"audit"`
}

// ExportState captures the committed state as a snapshot.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Users:            append([]User(nil), s.state.users...),
		CurrentUser:      cloneSession(s.state.session),
		Inventory:        append([]InventoryItem(nil), s.state.inventory...),
		PurchaseRequests: make([]PurchaseRequest, 0, len(s.state.requests)),
		Deliveries:       make([]Delivery, 0, len(s.state.deliveries)),
		Audit:            make([]AuditEntry, 0, len(s.state.audit)),
	}
	for _, r := range s.state.requests {
		snap.PurchaseRequests = append(snap.PurchaseRequests, cloneRequest(r))
	}
	for _, d := range s.state.deliveries {
		snap.Deliveries = append(snap.Deliveries, cloneDelivery(d))
	}
	for _, a := range s.state.audit {
		snap.Audit = append(snap.Audit, cloneAudit(a))
	}
	return snap
}

// ImportState replaces the committed state with the snapshot. The snapshot is
// normalized first so a document produced by an older or hand-edited payload
// still loads into a consistent state. Importing an exported snapshot is a
// no-op round trip.
func (s *Store) ImportState(snap Snapshot) {
	snap = normalizeSnapshot(snap)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = memoryState{
		users:      snap.Users,
		session:    snap.CurrentUser,
		inventory:  snap.Inventory,
		requests:   snap.PurchaseRequests,
		deliveries: snap.Deliveries,
		audit:      snap.Audit,
	}
}

// normalizeSnapshot repairs structural defects in a loaded document. It is
// the identity function on any snapshot produced by ExportState.
func normalizeSnapshot(snap Snapshot) Snapshot {
	out := Snapshot{
		Users:       append([]User(nil), snap.Users...),
		CurrentUser: cloneSession(snap.CurrentUser),
	}

	// Drop a session that no longer names a known user.
	if out.CurrentUser != nil {
		known := false
		for _, u := range out.Users {
			if u.ID == out.CurrentUser.UserID {
				known = true
				break
			}
		}
		if !known {
			out.CurrentUser = nil
		}
	}

	out.Inventory = make([]InventoryItem, 0, len(snap.Inventory))
	for _, item := range snap.Inventory {
		if item.ID == "" {
			continue
		}
		if item.OnHand < 0 {
			item.OnHand = 0
		}
		out.Inventory = append(out.Inventory, item)
	}

	requestIDs := make(map[string]struct{}, len(snap.PurchaseRequests))
	out.PurchaseRequests = make([]PurchaseRequest, 0, len(snap.PurchaseRequests))
	for _, r := range snap.PurchaseRequests {
		if r.ID == "" {
			continue
		}
		switch r.Status {
		case domain.StatusPending, domain.StatusApproved, domain.StatusDelivered:
		default:
			r.Status = domain.StatusPending
		}
		requestIDs[r.ID] = struct{}{}
		out.PurchaseRequests = append(out.PurchaseRequests, cloneRequest(r))
	}

	// Deliveries must reference a retained purchase request.
	out.Deliveries = make([]Delivery, 0, len(snap.Deliveries))
	for _, d := range snap.Deliveries {
		if d.ID == "" {
			continue
		}
		if _, ok := requestIDs[d.RequestID]; !ok {
			continue
		}
		if d.ReceivedBy == "" {
			d.ReceivedBy = domain.SystemActor
		}
		out.Deliveries = append(out.Deliveries, cloneDelivery(d))
	}

	out.Audit = make([]AuditEntry, 0, len(snap.Audit))
	for _, a := range snap.Audit {
		if a.ID == "" || a.Action == "" {
			continue
		}
		if a.By == "" {
			a.By = domain.SystemActor
		}
		out.Audit = append(out.Audit, cloneAudit(a))
	}

	return out
}
