package memory

import "opsledger/pkg/domain"

// SeedSnapshot returns the bootstrap state for a fresh deployment: the two
// directory users and the starter inventory. IDs are fixed so seeded
// documents are reproducible across stores.
func SeedSnapshot() Snapshot {
	return Snapshot{
		Users: []User{
			{ID: "u1", Username: "site.alex", Password: "password", Role: domain.RoleSite, Name: "Alex (Site)"},
			{ID: "u2", Username: "office.mia", Password: "password", Role: domain.RoleOffice, Name: "Mia (Office)"},
		},
		Inventory: []InventoryItem{
			{ID: "i1", Name: "Cement 40kg", SKU: "CEM-40", OnHand: 60, Min: 20, Max: 200},
			{ID: "i2", Name: "Rebar #4", SKU: "REB-4", OnHand: 350, Min: 100, Max: 1000},
		},
		PurchaseRequests: []PurchaseRequest{},
		Deliveries:       []Delivery{},
		Audit:            []AuditEntry{},
	}
}

// NewSeededStore constructs a store preloaded with the bootstrap state.
func NewSeededStore(engine *RulesEngine) *Store {
	store := NewStore(engine)
	store.ImportState(SeedSnapshot())
	return store
}
