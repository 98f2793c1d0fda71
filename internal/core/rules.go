package core

import (
	"context"
	"fmt"

	"opsledger/pkg/domain"
)

// NewDefaultRulesEngine builds an engine with the standard rule set
// registered.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(RequestTransitionRule())
	engine.Register(InventoryQuantityRule())
	engine.Register(DeliveryReferenceRule())
	return engine
}

// RequestTransitionRule blocks illegal purchase request status moves. The
// only legal transitions are Pending to Approved and Approved to Delivered;
// Delivered is terminal.
func RequestTransitionRule() domain.Rule {
	return requestTransitionRule{}
}

type requestTransitionRule struct{}

var legalTransitions = map[domain.RequestStatus]domain.RequestStatus{
	domain.StatusPending:  domain.StatusApproved,
	domain.StatusApproved: domain.StatusDelivered,
}

func (requestTransitionRule) Name() string { return "request_transition" }

func (requestTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityRequest || change.Action != domain.ActionUpdate {
			continue
		}
		before, okB := change.Before.(PurchaseRequest)
		after, okA := change.After.(PurchaseRequest)
		if !okB || !okA || before.Status == after.Status {
			continue
		}
		if legalTransitions[before.Status] != after.Status {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "request_transition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("purchase request %s cannot move from %s to %s", after.ID, before.Status, after.Status),
				Entity:   domain.EntityRequest,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}

// InventoryQuantityRule flags inventory writes that would leave a negative
// on-hand count. Warning only; reconciliation never subtracts, so a negative
// count can only come from a manual edit.
func InventoryQuantityRule() domain.Rule {
	return inventoryQuantityRule{}
}

type inventoryQuantityRule struct{}

func (inventoryQuantityRule) Name() string { return "inventory_quantity" }

func (inventoryQuantityRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityInventoryItem || change.Action == domain.ActionDelete {
			continue
		}
		after, ok := change.After.(InventoryItem)
		if !ok {
			continue
		}
		if after.OnHand < 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "inventory_quantity",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("inventory item %s has negative on-hand count %d", after.ID, after.OnHand),
				Entity:   domain.EntityInventoryItem,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}

// DeliveryReferenceRule blocks delivery records that do not reference a
// known purchase request.
func DeliveryReferenceRule() domain.Rule {
	return deliveryReferenceRule{}
}

type deliveryReferenceRule struct{}

func (deliveryReferenceRule) Name() string { return "delivery_reference" }

func (deliveryReferenceRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityDelivery || change.Action != domain.ActionCreate {
			continue
		}
		delivery, ok := change.After.(Delivery)
		if !ok {
			continue
		}
		if _, found := view.FindRequest(delivery.RequestID); !found {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "delivery_reference",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("delivery %s references unknown purchase request %s", delivery.ID, delivery.RequestID),
				Entity:   domain.EntityDelivery,
				EntityID: delivery.ID,
			})
		}
	}
	return res, nil
}
