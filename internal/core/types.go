// Package core implements the workflow layer: authentication, inventory
// maintenance, the purchase request lifecycle, and the audit trail. All
// mutations run through a persistent store transaction so rules evaluate
// and state snapshots atomically.
package core

import "opsledger/pkg/domain"

// Domain aliases keep service signatures concise.
type (
	User            = domain.User
	Session         = domain.Session
	InventoryItem   = domain.InventoryItem
	PurchaseRequest = domain.PurchaseRequest
	RequestLine     = domain.RequestLine
	Delivery        = domain.Delivery
	AuditEntry      = domain.AuditEntry
	Result          = domain.Result
	RulesEngine     = domain.RulesEngine
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)
