// Package domain defines the persistent entities, workflow states, and rule
// evaluation primitives used by opsledger.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and error values.
const (
	// EntityUser identifies a directory user record.
	EntityUser EntityType = "user"
	// EntityInventoryItem identifies a stocked inventory item.
	EntityInventoryItem EntityType = "inventory_item"
	// EntityRequest identifies a purchase request.
	EntityRequest EntityType = "purchase_request"
	// EntityDelivery identifies a delivery record.
	EntityDelivery EntityType = "delivery"
)

// Role determines which workflow operations a user may perform.
type Role string

// Directory roles. Site users author purchase requests; office users approve
// them.
const (
	RoleSite   Role = "site"
	RoleOffice Role = "office"
)

// RequestStatus enumerates the purchase request workflow states. Transitions
// only move forward: Pending -> Approved -> Delivered.
type RequestStatus string

// Canonical request statuses. StatusDelivered is terminal.
const (
	StatusPending   RequestStatus = "Pending"
	StatusApproved  RequestStatus = "Approved"
	StatusDelivered RequestStatus = "Delivered"
)

// Audit action tags recorded by the workflow operations.
const (
	AuditLogin           = "login"
	AuditLogout          = "logout"
	AuditAddInventory    = "add inventory"
	AuditUpdateInventory = "update inventory"
	AuditRemoveInventory = "remove inventory"
	AuditCreateRequest   = "create PR"
	AuditApproveRequest  = "approve PR"
	AuditDeliverRequest  = "deliver PR"
)

// SystemActor is recorded as the acting party when no session is present.
const SystemActor = "system"

// User is a directory entry. The directory is static: users are seeded, never
// created or deleted at runtime. Passwords are stored and compared in plain
// text (an explicit non-goal of this system).
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
	Name     string `json:"name"`
}

// Session is the signed-in projection of a User. At most one session exists;
// it lives inside the persisted state so single-shot callers keep it between
// invocations.
type Session struct {
	UserID   string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	Name     string `json:"name"`
}

// InventoryItem is one stocked item. OnHand is a running total incremented by
// deliveries; Min and Max are reorder thresholds carried for display.
type InventoryItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	SKU    string `json:"sku"`
	OnHand int    `json:"onhand"`
	Min    int    `json:"min"`
	Max    int    `json:"max"`
}

// RequestLine is one line of a purchase request. Lines are owned by their
// request and immutable after submission; a resulting Delivery copies them
// verbatim. UnitCost is carried as free text and never validated numerically.
type RequestLine struct {
	Item     string `json:"item"`
	SKU      string `json:"sku,omitempty"`
	Qty      int    `json:"qty"`
	UnitCost string `json:"unitCost,omitempty"`
}

// PurchaseRequest is the workflow aggregate: a requester, an ordered set of
// lines, and a forward-only status.
type PurchaseRequest struct {
	ID        string        `json:"id"`
	Requester string        `json:"requester"`
	Status    RequestStatus `json:"status"`
	Lines     []RequestLine `json:"lines"`
	CreatedAt time.Time     `json:"ts"`
}

// Delivery materializes the receipt of an approved request. It references the
// request by ID (non-owning) and is never mutated after creation.
type Delivery struct {
	ID         string        `json:"id"`
	RequestID  string        `json:"prId"`
	ReceivedAt time.Time     `json:"ts"`
	Lines      []RequestLine `json:"lines"`
	ReceivedBy string        `json:"receivedBy"`
}

// AuditEntry records one state-changing action. The log is append-only and
// ordered most-recent-first; only the bulk clear operation removes entries.
type AuditEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"ts"`
	Action    string         `json:"action"`
	By        string         `json:"by"`
	Details   map[string]any `json:"details,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the supported mutations captured for rule
// evaluation.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
)

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Warnings returns the non-blocking violations.
func (r Result) Warnings() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == SeverityWarn {
			out = append(out, v)
		}
	}
	return out
}
