package domain

import (
	"context"
	"time"
)

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Every mutation either commits together
// with the rest of the transaction or not at all.
type Transaction interface {
	Snapshot() TransactionView
	CreateInventoryItem(InventoryItem) (InventoryItem, error)
	UpdateInventoryItem(id string, mutator func(*InventoryItem) error) (InventoryItem, error)
	DeleteInventoryItem(id string) error
	CreateRequest(PurchaseRequest) (PurchaseRequest, error)
	UpdateRequest(id string, mutator func(*PurchaseRequest) error) (PurchaseRequest, error)
	CreateDelivery(Delivery) (Delivery, error)
	AppendAudit(action, by string, details map[string]any) AuditEntry
	ClearAudit() int
	SetSession(*Session)
	Session() *Session
	FindUser(username string) (User, bool)
	FindInventoryItem(id string) (InventoryItem, bool)
	FindRequest(id string) (PurchaseRequest, bool)
	ListInventory() []InventoryItem
	Now() time.Time
}

// TransactionView provides read-only access to a consistent snapshot of the
// aggregate state.
type TransactionView interface {
	ListUsers() []User
	ListInventory() []InventoryItem
	ListRequests() []PurchaseRequest
	ListDeliveries() []Delivery
	ListAudit() []AuditEntry
	Session() *Session
	FindInventoryItem(id string) (InventoryItem, bool)
	FindRequest(id string) (PurchaseRequest, bool)
}

// PersistentStore is a minimal abstraction over durable backends. A store
// persists the entire aggregate state after every successful transaction; the
// last writer's full state wins.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetInventoryItem(id string) (InventoryItem, bool)
	ListInventory() []InventoryItem
	GetRequest(id string) (PurchaseRequest, bool)
	ListRequests() []PurchaseRequest
	ListDeliveries() []Delivery
	ListUsers() []User
	ListAudit() []AuditEntry
	Session() *Session
}
