package core

import (
	"context"

	"opsledger/pkg/domain"
)

// Stats summarizes the dashboard counters.
type Stats struct {
	SKUs             int `json:"skus"`
	UnitsOnHand      int `json:"unitsOnHand"`
	PendingRequests  int `json:"pendingRequests"`
	AwaitingDelivery int `json:"awaitingDelivery"`
}

// RequestRow is a purchase request decorated with the actions available on
// it. Approval is gated on an office session; delivery is open to any caller.
type RequestRow struct {
	PurchaseRequest
	CanApprove bool `json:"canApprove"`
	CanDeliver bool `json:"canDeliver"`
}

// DeliveryRow flattens one delivered line for display.
type DeliveryRow struct {
	DeliveryID string `json:"deliveryId"`
	RequestID  string `json:"prId"`
	Item       string `json:"item"`
	SKU        string `json:"sku,omitempty"`
	Qty        int    `json:"qty"`
	ReceivedBy string `json:"receivedBy"`
}

// ViewSnapshot is a consistent read of everything the UI renders at once.
type ViewSnapshot struct {
	Session        *Session        `json:"session"`
	Inventory      []InventoryItem `json:"inventory"`
	Requests       []RequestRow    `json:"requests"`
	Deliveries     []DeliveryRow   `json:"deliveries"`
	Audit          []AuditEntry    `json:"audit"`
	RecentActivity []AuditEntry    `json:"recentActivity"`
	Stats          Stats           `json:"stats"`
}

// recentActivityLimit caps the dashboard activity feed.
const recentActivityLimit = 10

// Snapshot assembles the dashboard view from a single read-only store view,
// so counters and listings always agree with each other.
func (s *Service) Snapshot(ctx context.Context) (ViewSnapshot, error) {
	var snap ViewSnapshot
	err := s.store.View(ctx, func(view TransactionView) error {
		session := view.Session()
		snap.Session = session
		snap.Inventory = view.ListInventory()
		snap.Audit = view.ListAudit()

		requests := view.ListRequests()
		snap.Requests = make([]RequestRow, 0, len(requests))
		for _, r := range requests {
			row := RequestRow{PurchaseRequest: r}
			switch r.Status {
			case domain.StatusPending:
				row.CanApprove = session != nil && session.Role == domain.RoleOffice
				snap.Stats.PendingRequests++
			case domain.StatusApproved:
				row.CanDeliver = true
				snap.Stats.AwaitingDelivery++
			}
			snap.Requests = append(snap.Requests, row)
		}

		deliveries := view.ListDeliveries()
		snap.Deliveries = make([]DeliveryRow, 0, len(deliveries))
		for _, d := range deliveries {
			for _, line := range d.Lines {
				snap.Deliveries = append(snap.Deliveries, DeliveryRow{
					DeliveryID: d.ID,
					RequestID:  d.RequestID,
					Item:       line.Item,
					SKU:        line.SKU,
					Qty:        line.Qty,
					ReceivedBy: d.ReceivedBy,
				})
			}
		}

		snap.Stats.SKUs = len(snap.Inventory)
		for _, item := range snap.Inventory {
			snap.Stats.UnitsOnHand += item.OnHand
		}

		limit := recentActivityLimit
		if len(snap.Audit) < limit {
			limit = len(snap.Audit)
		}
		snap.RecentActivity = append([]AuditEntry(nil), snap.Audit[:limit]...)
		return nil
	})
	if err != nil {
		return ViewSnapshot{}, err
	}
	return snap, nil
}
