// Package memory provides the in-memory transactional store that the durable
// stores build upon. It owns the aggregate application state; all access goes
// through transactions or read-only views, never through shared memory.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"opsledger/pkg/domain"
)

// Exported aliases to keep method signatures concise while still exposing
// domain types from this infra package.
type (
	// User is an alias of domain.User.
	User = domain.User
	// Session is an alias of domain.Session.
	Session = domain.Session
	// InventoryItem is an alias of domain.InventoryItem.
	InventoryItem = domain.InventoryItem
	// PurchaseRequest is an alias of domain.PurchaseRequest.
	PurchaseRequest = domain.PurchaseRequest
	// RequestLine is an alias of domain.RequestLine.
	RequestLine = domain.RequestLine
	// Delivery is an alias of domain.Delivery.
	Delivery = domain.Delivery
	// AuditEntry is an alias of domain.AuditEntry.
	AuditEntry = domain.AuditEntry
	// Change is an alias of domain.Change.
	Change = domain.Change
	// Result is an alias of domain.Result.
	Result = domain.Result
	// RulesEngine is an alias of domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Transaction is an alias of domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView is an alias of domain.TransactionView.
	TransactionView = domain.TransactionView
)

// memoryState is the aggregate root. Collections keep the original document
// order: inventory and users append at the end, requests, deliveries and
// audit entries prepend (most recent first).
type memoryState struct {
	users      []User
	session    *Session
	inventory  []InventoryItem
	requests   []PurchaseRequest
	deliveries []Delivery
	audit      []AuditEntry
}

func (s memoryState) clone() memoryState {
	cloned := memoryState{}
	cloned.users = append([]User(nil), s.users...)
	if s.session != nil {
		sess := *s.session
		cloned.session = &sess
	}
	cloned.inventory = append([]InventoryItem(nil), s.inventory...)
	cloned.requests = make([]PurchaseRequest, 0, len(s.requests))
	for _, r := range s.requests {
		cloned.requests = append(cloned.requests, cloneRequest(r))
	}
	cloned.deliveries = make([]Delivery, 0, len(s.deliveries))
	for _, d := range s.deliveries {
		cloned.deliveries = append(cloned.deliveries, cloneDelivery(d))
	}
	cloned.audit = make([]AuditEntry, 0, len(s.audit))
	for _, a := range s.audit {
		cloned.audit = append(cloned.audit, cloneAudit(a))
	}
	return cloned
}

func cloneLines(lines []RequestLine) []RequestLine {
	if lines == nil {
		return nil
	}
	return append([]RequestLine(nil), lines...)
}

func cloneRequest(r PurchaseRequest) PurchaseRequest {
	cp := r
	cp.Lines = cloneLines(r.Lines)
	return cp
}

func cloneDelivery(d Delivery) Delivery {
	cp := d
	cp.Lines = cloneLines(d.Lines)
	return cp
}

func cloneAudit(a AuditEntry) AuditEntry {
	cp := a
	if a.Details != nil {
		cp.Details = make(map[string]any, len(a.Details))
		for k, v := range a.Details {
			cp.Details[k] = v
		}
	}
	return cp
}

// Store provides an in-memory transactional store for the aggregate state.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	idFn   func() string
}

// NewStore constructs an in-memory store backed by the provided rules engine.
// A nil engine skips rule evaluation entirely.
func NewStore(engine *RulesEngine) *Store {
	return &Store{
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.NewString,
	}
}

// SetClock overrides the transaction timestamp source. Intended for tests and
// deterministic exports.
func (s *Store) SetClock(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

// SetIDFunc overrides the identifier generator. Intended for tests.
func (s *Store) SetIDFunc(fn func() string) {
	if fn != nil {
		s.idFn = fn
	}
}

// tx is the concrete transaction over a cloned state.
type tx struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

// view exposes a read-only snapshot of transactional state.
type view struct {
	state *memoryState
}

// RunInTransaction executes fn within a transactional copy of the store
// state. Registered rules evaluate the recorded changes before commit;
// blocking violations roll the transaction back and surface as
// domain.RuleViolationError.
func (s *Store) RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(t); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, t.Snapshot(), t.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = t.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(view{state: &snapshot})
}

func (t *tx) recordChange(change Change) {
	t.changes = append(t.changes, change)
}

// Snapshot exposes the transactional state as a read-only view.
func (t *tx) Snapshot() TransactionView {
	return view{state: &t.state}
}

// Now returns the single timestamp shared by every mutation in this
// transaction.
func (t *tx) Now() time.Time {
	return t.now
}

// CreateInventoryItem stores a new inventory item.
func (t *tx) CreateInventoryItem(item InventoryItem) (InventoryItem, error) {
	if item.ID == "" {
		item.ID = t.store.idFn()
	}
	if _, ok := findItem(t.state.inventory, item.ID); ok {
		return InventoryItem{}, fmt.Errorf("inventory item %q already exists", item.ID)
	}
	t.state.inventory = append(t.state.inventory, item)
	t.recordChange(Change{Entity: domain.EntityInventoryItem, Action: domain.ActionCreate, After: item})
	return item, nil
}

// UpdateInventoryItem mutates an inventory item using the provided mutator.
func (t *tx) UpdateInventoryItem(id string, mutator func(*InventoryItem) error) (InventoryItem, error) {
	idx, ok := findItem(t.state.inventory, id)
	if !ok {
		return InventoryItem{}, domain.NotFoundError{Entity: domain.EntityInventoryItem, ID: id}
	}
	before := t.state.inventory[idx]
	current := before
	if err := mutator(&current); err != nil {
		return InventoryItem{}, err
	}
	current.ID = id
	t.state.inventory[idx] = current
	t.recordChange(Change{Entity: domain.EntityInventoryItem, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteInventoryItem removes an inventory item. No referential check is made
// against requests or deliveries that name the same item.
func (t *tx) DeleteInventoryItem(id string) error {
	idx, ok := findItem(t.state.inventory, id)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityInventoryItem, ID: id}
	}
	before := t.state.inventory[idx]
	t.state.inventory = append(t.state.inventory[:idx], t.state.inventory[idx+1:]...)
	t.recordChange(Change{Entity: domain.EntityInventoryItem, Action: domain.ActionDelete, Before: before})
	return nil
}

// CreateRequest stores a new purchase request at the head of the collection.
func (t *tx) CreateRequest(r PurchaseRequest) (PurchaseRequest, error) {
	if r.ID == "" {
		r.ID = t.store.idFn()
	}
	if _, ok := findRequest(t.state.requests, r.ID); ok {
		return PurchaseRequest{}, fmt.Errorf("purchase request %q already exists", r.ID)
	}
	if r.Status == "" {
		r.Status = domain.StatusPending
	}
	r.CreatedAt = t.now
	r.Lines = cloneLines(r.Lines)
	t.state.requests = append([]PurchaseRequest{cloneRequest(r)}, t.state.requests...)
	t.recordChange(Change{Entity: domain.EntityRequest, Action: domain.ActionCreate, After: cloneRequest(r)})
	return cloneRequest(r), nil
}

// UpdateRequest mutates a purchase request using the provided mutator. Lines
// are immutable after submission; the mutator is expected to touch status
// only, and the transition rule blocks anything illegal.
func (t *tx) UpdateRequest(id string, mutator func(*PurchaseRequest) error) (PurchaseRequest, error) {
	idx, ok := findRequest(t.state.requests, id)
	if !ok {
		return PurchaseRequest{}, domain.NotFoundError{Entity: domain.EntityRequest, ID: id}
	}
	before := cloneRequest(t.state.requests[idx])
	current := cloneRequest(t.state.requests[idx])
	if err := mutator(&current); err != nil {
		return PurchaseRequest{}, err
	}
	current.ID = id
	t.state.requests[idx] = cloneRequest(current)
	t.recordChange(Change{Entity: domain.EntityRequest, Action: domain.ActionUpdate, Before: before, After: cloneRequest(current)})
	return cloneRequest(current), nil
}

// CreateDelivery stores a delivery record at the head of the collection.
// Deliveries are never mutated after creation.
func (t *tx) CreateDelivery(d Delivery) (Delivery, error) {
	if d.ID == "" {
		d.ID = t.store.idFn()
	}
	for _, existing := range t.state.deliveries {
		if existing.ID == d.ID {
			return Delivery{}, fmt.Errorf("delivery %q already exists", d.ID)
		}
	}
	d.ReceivedAt = t.now
	if d.ReceivedBy == "" {
		d.ReceivedBy = domain.SystemActor
	}
	d.Lines = cloneLines(d.Lines)
	t.state.deliveries = append([]Delivery{cloneDelivery(d)}, t.state.deliveries...)
	t.recordChange(Change{Entity: domain.EntityDelivery, Action: domain.ActionCreate, After: cloneDelivery(d)})
	return cloneDelivery(d), nil
}

// AppendAudit prepends an audit entry. The entry commits atomically with the
// rest of the transaction.
func (t *tx) AppendAudit(action, by string, details map[string]any) AuditEntry {
	if by == "" {
		by = domain.SystemActor
	}
	entry := AuditEntry{
		ID:        t.store.idFn(),
		Timestamp: t.now,
		Action:    action,
		By:        by,
		Details:   details,
	}
	t.state.audit = append([]AuditEntry{cloneAudit(entry)}, t.state.audit...)
	return entry
}

// ClearAudit empties the audit log and returns the number of removed entries.
func (t *tx) ClearAudit() int {
	n := len(t.state.audit)
	t.state.audit = nil
	return n
}

// SetSession replaces the current session. A nil session signs out.
func (t *tx) SetSession(sess *Session) {
	if sess == nil {
		t.state.session = nil
		return
	}
	cp := *sess
	t.state.session = &cp
}

// Session returns the current session, or nil when signed out.
func (t *tx) Session() *Session {
	return cloneSession(t.state.session)
}

// FindUser retrieves a directory user by exact username match.
func (t *tx) FindUser(username string) (User, bool) {
	return findUser(t.state.users, username)
}

// FindInventoryItem retrieves an inventory item by ID.
func (t *tx) FindInventoryItem(id string) (InventoryItem, bool) {
	idx, ok := findItem(t.state.inventory, id)
	if !ok {
		return InventoryItem{}, false
	}
	return t.state.inventory[idx], true
}

// FindRequest retrieves a purchase request by ID.
func (t *tx) FindRequest(id string) (PurchaseRequest, bool) {
	idx, ok := findRequest(t.state.requests, id)
	if !ok {
		return PurchaseRequest{}, false
	}
	return cloneRequest(t.state.requests[idx]), true
}

// ListInventory returns all inventory items within the transaction.
func (t *tx) ListInventory() []InventoryItem {
	return append([]InventoryItem(nil), t.state.inventory...)
}

// View methods -------------------------------------------------------------

func (v view) ListUsers() []User {
	return append([]User(nil), v.state.users...)
}

func (v view) ListInventory() []InventoryItem {
	return append([]InventoryItem(nil), v.state.inventory...)
}

func (v view) ListRequests() []PurchaseRequest {
	out := make([]PurchaseRequest, 0, len(v.state.requests))
	for _, r := range v.state.requests {
		out = append(out, cloneRequest(r))
	}
	return out
}

func (v view) ListDeliveries() []Delivery {
	out := make([]Delivery, 0, len(v.state.deliveries))
	for _, d := range v.state.deliveries {
		out = append(out, cloneDelivery(d))
	}
	return out
}

func (v view) ListAudit() []AuditEntry {
	out := make([]AuditEntry, 0, len(v.state.audit))
	for _, a := range v.state.audit {
		out = append(out, cloneAudit(a))
	}
	return out
}

func (v view) Session() *Session {
	return cloneSession(v.state.session)
}

func (v view) FindInventoryItem(id string) (InventoryItem, bool) {
	idx, ok := findItem(v.state.inventory, id)
	if !ok {
		return InventoryItem{}, false
	}
	return v.state.inventory[idx], true
}

func (v view) FindRequest(id string) (PurchaseRequest, bool) {
	idx, ok := findRequest(v.state.requests, id)
	if !ok {
		return PurchaseRequest{}, false
	}
	return cloneRequest(v.state.requests[idx]), true
}

// Read helpers over committed state ----------------------------------------

// GetInventoryItem retrieves an inventory item from committed state.
func (s *Store) GetInventoryItem(id string) (InventoryItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := findItem(s.state.inventory, id)
	if !ok {
		return InventoryItem{}, false
	}
	return s.state.inventory[idx], true
}

// ListInventory returns all inventory items from committed state.
func (s *Store) ListInventory() []InventoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]InventoryItem(nil), s.state.inventory...)
}

// GetRequest retrieves a purchase request from committed state.
func (s *Store) GetRequest(id string) (PurchaseRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := findRequest(s.state.requests, id)
	if !ok {
		return PurchaseRequest{}, false
	}
	return cloneRequest(s.state.requests[idx]), true
}

// ListRequests returns all purchase requests, most recent first.
func (s *Store) ListRequests() []PurchaseRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PurchaseRequest, 0, len(s.state.requests))
	for _, r := range s.state.requests {
		out = append(out, cloneRequest(r))
	}
	return out
}

// ListDeliveries returns all deliveries, most recent first.
func (s *Store) ListDeliveries() []Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Delivery, 0, len(s.state.deliveries))
	for _, d := range s.state.deliveries {
		out = append(out, cloneDelivery(d))
	}
	return out
}

// ListUsers returns the user directory.
func (s *Store) ListUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]User(nil), s.state.users...)
}

// ListAudit returns the audit log, most recent first.
func (s *Store) ListAudit() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AuditEntry, 0, len(s.state.audit))
	for _, a := range s.state.audit {
		out = append(out, cloneAudit(a))
	}
	return out
}

// Session returns the committed session, or nil when signed out.
func (s *Store) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneSession(s.state.session)
}

func cloneSession(sess *Session) *Session {
	if sess == nil {
		return nil
	}
	cp := *sess
	return &cp
}

func findUser(users []User, username string) (User, bool) {
	for _, u := range users {
		if u.Username == username {
			return u, true
		}
	}
	return User{}, false
}

func findItem(items []InventoryItem, id string) (int, bool) {
	for i, it := range items {
		if it.ID == id {
			return i, true
		}
	}
	return 0, false
}

func findRequest(requests []PurchaseRequest, id string) (int, bool) {
	for i, r := range requests {
		if r.ID == id {
			return i, true
		}
	}
	return 0, false
}
