package core

import (
	"context"
	"strings"
	"time"

	"opsledger/pkg/domain"
)

// Service exposes the transactional workflow operations: sign-in, inventory
// maintenance, the purchase request lifecycle, and the audit trail.
type Service struct {
	store   PersistentStore
	log     Logger
	metrics MetricsRecorder
	tracer  Tracer
}

// ServiceOption configures optional service collaborators.
type ServiceOption func(*Service)

// WithLogger installs a logger. Defaults to a no-op.
func WithLogger(log Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetricsRecorder installs a metrics recorder. Defaults to a no-op.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithTracer installs a tracer. Defaults to a no-op.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		log:     noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// run wraps a transaction with tracing, metrics, and rule warning logs.
func (s *Service) run(ctx context.Context, op string, fn func(Transaction) error) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	span.End(err)
	for _, warning := range res.Warnings() {
		s.log.Warnf("%s: rule %s: %s", op, warning.Rule, warning.Message)
	}
	if err != nil {
		s.log.Debugf("%s failed: %v", op, err)
	}
	return res, err
}

// Authenticate verifies credentials and establishes the session. The login
// is recorded in the audit trail atomically with the session change.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Session, error) {
	var session Session
	_, err := s.run(ctx, "authenticate", func(tx Transaction) error {
		user, ok := tx.FindUser(strings.TrimSpace(username))
		if !ok || user.Password != password {
			return domain.ErrInvalidCredentials
		}
		session = Session{UserID: user.ID, Username: user.Username, Role: user.Role, Name: user.Name}
		tx.SetSession(&session)
		tx.AppendAudit(domain.AuditLogin, user.Username, nil)
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	s.log.Infof("signed in %s (%s)", session.Username, session.Role)
	return session, nil
}

// SignOut clears the session and records the logout.
func (s *Service) SignOut(ctx context.Context) error {
	_, err := s.run(ctx, "sign_out", func(tx Transaction) error {
		session := tx.Session()
		if session == nil {
			return domain.ErrNoSession
		}
		tx.SetSession(nil)
		tx.AppendAudit(domain.AuditLogout, session.Username, nil)
		return nil
	})
	return err
}

// CurrentSession returns the active session, or nil when signed out.
func (s *Service) CurrentSession() *Session {
	return s.store.Session()
}

// AddInventoryItem creates an inventory item and records the change.
func (s *Service) AddInventoryItem(ctx context.Context, item InventoryItem) (InventoryItem, Result, error) {
	var created InventoryItem
	res, err := s.run(ctx, "add_inventory", func(tx Transaction) error {
		var err error
		created, err = tx.CreateInventoryItem(item)
		if err != nil {
			return err
		}
		tx.AppendAudit(domain.AuditAddInventory, actor(tx), map[string]any{"id": created.ID, "name": created.Name, "sku": created.SKU})
		return nil
	})
	return created, res, err
}

// UpdateInventoryItem mutates an inventory item using the provided mutator.
func (s *Service) UpdateInventoryItem(ctx context.Context, id string, mutator func(*InventoryItem) error) (InventoryItem, Result, error) {
	var updated InventoryItem
	res, err := s.run(ctx, "update_inventory", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateInventoryItem(id, mutator)
		if err != nil {
			return err
		}
		tx.AppendAudit(domain.AuditUpdateInventory, actor(tx), map[string]any{"id": id, "name": updated.Name, "sku": updated.SKU})
		return nil
	})
	return updated, res, err
}

// RemoveInventoryItem deletes an inventory item and records the removal.
func (s *Service) RemoveInventoryItem(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "remove_inventory", func(tx Transaction) error {
		if err := tx.DeleteInventoryItem(id); err != nil {
			return err
		}
		tx.AppendAudit(domain.AuditRemoveInventory, actor(tx), map[string]any{"id": id})
		return nil
	})
}

// CreateRequest submits a new purchase request on behalf of the signed-in
// user. Lines with a blank item or non-positive quantity are discarded; a
// request with no usable lines is rejected.
func (s *Service) CreateRequest(ctx context.Context, lines []RequestLine) (PurchaseRequest, Result, error) {
	var created PurchaseRequest
	res, err := s.run(ctx, "create_request", func(tx Transaction) error {
		session := tx.Session()
		if session == nil {
			return domain.ErrNoSession
		}
		cleaned := make([]RequestLine, 0, len(lines))
		for _, line := range lines {
			line.Item = strings.TrimSpace(line.Item)
			line.SKU = strings.TrimSpace(line.SKU)
			if line.Item == "" || line.Qty <= 0 {
				continue
			}
			cleaned = append(cleaned, line)
		}
		if len(cleaned) == 0 {
			return domain.ErrEmptyLines
		}
		var err error
		created, err = tx.CreateRequest(PurchaseRequest{
			Requester: session.Username,
			Status:    domain.StatusPending,
			Lines:     cleaned,
		})
		if err != nil {
			return err
		}
		tx.AppendAudit(domain.AuditCreateRequest, session.Username, map[string]any{
			"prId":       created.ID,
			"linesCount": len(created.Lines),
		})
		return nil
	})
	return created, res, err
}

// ApproveRequest moves a pending request to Approved. Only the office role
// may approve; a request that is not pending yields a TransitionError.
func (s *Service) ApproveRequest(ctx context.Context, id string) (PurchaseRequest, Result, error) {
	var approved PurchaseRequest
	res, err := s.run(ctx, "approve_request", func(tx Transaction) error {
		session := tx.Session()
		if session == nil {
			return domain.ErrNoSession
		}
		if session.Role != domain.RoleOffice {
			return domain.ErrForbidden
		}
		var err error
		approved, err = tx.UpdateRequest(id, func(r *PurchaseRequest) error {
			if r.Status != domain.StatusPending {
				return domain.TransitionError{ID: r.ID, From: r.Status, To: domain.StatusApproved}
			}
			r.Status = domain.StatusApproved
			return nil
		})
		if err != nil {
			return err
		}
		tx.AppendAudit(domain.AuditApproveRequest, session.Username, map[string]any{"id": id})
		return nil
	})
	return approved, res, err
}

// DeliverRequest marks an approved request delivered, records the delivery,
// and replenishes inventory, all in one transaction. Each line increments
// the matching item's on-hand count; lines with no match create a new item
// with zero thresholds.
func (s *Service) DeliverRequest(ctx context.Context, id string) (PurchaseRequest, Delivery, Result, error) {
	var delivered PurchaseRequest
	var record Delivery
	res, err := s.run(ctx, "deliver_request", func(tx Transaction) error {
		var err error
		delivered, err = tx.UpdateRequest(id, func(r *PurchaseRequest) error {
			if r.Status != domain.StatusApproved {
				return domain.TransitionError{ID: r.ID, From: r.Status, To: domain.StatusDelivered}
			}
			r.Status = domain.StatusDelivered
			return nil
		})
		if err != nil {
			return err
		}
		record, err = tx.CreateDelivery(Delivery{
			RequestID:  delivered.ID,
			Lines:      delivered.Lines,
			ReceivedBy: actor(tx),
		})
		if err != nil {
			return err
		}
		for _, line := range delivered.Lines {
			if err := reconcileLine(tx, line); err != nil {
				return err
			}
		}
		tx.AppendAudit(domain.AuditDeliverRequest, actor(tx), map[string]any{"prId": delivered.ID})
		return nil
	})
	return delivered, record, res, err
}

func reconcileLine(tx Transaction, line RequestLine) error {
	if item, ok := matchInventoryItem(tx.ListInventory(), line); ok {
		_, err := tx.UpdateInventoryItem(item.ID, func(it *InventoryItem) error {
			it.OnHand += line.Qty
			return nil
		})
		return err
	}
	_, err := tx.CreateInventoryItem(InventoryItem{
		Name:   strings.TrimSpace(line.Item),
		SKU:    strings.TrimSpace(line.SKU),
		OnHand: line.Qty,
	})
	return err
}

// Request retrieves a purchase request by ID.
func (s *Service) Request(ctx context.Context, id string) (PurchaseRequest, error) {
	if r, ok := s.store.GetRequest(id); ok {
		return r, nil
	}
	return PurchaseRequest{}, domain.NotFoundError{Entity: domain.EntityRequest, ID: id}
}

// InventoryItemByID retrieves an inventory item by ID.
func (s *Service) InventoryItemByID(ctx context.Context, id string) (InventoryItem, error) {
	if item, ok := s.store.GetInventoryItem(id); ok {
		return item, nil
	}
	return InventoryItem{}, domain.NotFoundError{Entity: domain.EntityInventoryItem, ID: id}
}

// ListInventory returns inventory items in creation order.
func (s *Service) ListInventory(ctx context.Context) []InventoryItem {
	return s.store.ListInventory()
}

// ListRequests returns purchase requests, most recent first.
func (s *Service) ListRequests(ctx context.Context) []PurchaseRequest {
	return s.store.ListRequests()
}

// ListDeliveries returns deliveries, most recent first.
func (s *Service) ListDeliveries(ctx context.Context) []Delivery {
	return s.store.ListDeliveries()
}

// ListAudit returns the audit trail, most recent first.
func (s *Service) ListAudit(ctx context.Context) []AuditEntry {
	return s.store.ListAudit()
}

// ClearAudit discards the audit trail and reports how many entries were
// removed. The clear itself is not audited.
func (s *Service) ClearAudit(ctx context.Context) (int, error) {
	var removed int
	_, err := s.run(ctx, "clear_audit", func(tx Transaction) error {
		removed = tx.ClearAudit()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// actor names the audit principal: the signed-in username, or the system
// fallback when no session exists.
func actor(tx Transaction) string {
	if session := tx.Session(); session != nil {
		return session.Username
	}
	return domain.SystemActor
}
