package domain

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// The persisted document keys are a compatibility contract; renaming a field
// tag breaks loading of existing state files.
func TestPersistedFieldNames(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		v    any
		want string
	}{
		{
			"user",
			User{ID: "u1", Username: "site.alex", Password: "password", Role: RoleSite, Name: "Alex (Site)"},
			`{"id":"u1","username":"site.alex","password":"password","role":"site","name":"Alex (Site)"}`,
		},
		{
			"inventory item",
			InventoryItem{ID: "i1", Name: "Cement 40kg", SKU: "CEM-40", OnHand: 60, Min: 20, Max: 200},
			`{"id":"i1","name":"Cement 40kg","sku":"CEM-40","onhand":60,"min":20,"max":200}`,
		},
		{
			"purchase request",
			PurchaseRequest{ID: "pr1", Requester: "site.alex", Status: StatusPending, Lines: []RequestLine{{Item: "Cement 40kg", SKU: "CEM-40", Qty: 10, UnitCost: "7.50"}}, CreatedAt: ts},
			`{"id":"pr1","requester":"site.alex","status":"Pending","lines":[{"item":"Cement 40kg","sku":"CEM-40","qty":10,"unitCost":"7.50"}],"ts":"2024-03-01T12:00:00Z"}`,
		},
		{
			"line omits empty sku and cost",
			RequestLine{Item: "Pipe 50mm", Qty: 12},
			`{"item":"Pipe 50mm","qty":12}`,
		},
		{
			"delivery",
			Delivery{ID: "d1", RequestID: "pr1", ReceivedAt: ts, Lines: []RequestLine{{Item: "Pipe 50mm", Qty: 12}}, ReceivedBy: "office.mia"},
			`{"id":"d1","prId":"pr1","ts":"2024-03-01T12:00:00Z","lines":[{"item":"Pipe 50mm","qty":12}],"receivedBy":"office.mia"}`,
		},
		{
			"audit entry",
			AuditEntry{ID: "a1", Timestamp: ts, Action: AuditCreateRequest, By: "site.alex", Details: map[string]any{"prId": "pr1"}},
			`{"id":"a1","ts":"2024-03-01T12:00:00Z","action":"create PR","by":"site.alex","details":{"prId":"pr1"}}`,
		},
		{
			"audit entry omits empty details",
			AuditEntry{ID: "a2", Timestamp: ts, Action: AuditLogin, By: "site.alex"},
			`{"id":"a2","ts":"2024-03-01T12:00:00Z","action":"login","by":"site.alex"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := json.Marshal(tc.v)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(got) != tc.want {
				t.Fatalf("got  %s\nwant %s", got, tc.want)
			}
		})
	}
}

func TestNotFoundError(t *testing.T) {
	err := error(NotFoundError{Entity: EntityRequest, ID: "pr9"})
	if err.Error() != "purchase_request pr9 not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	var nfe NotFoundError
	if !errors.As(err, &nfe) || nfe.ID != "pr9" {
		t.Fatalf("errors.As failed: %+v", nfe)
	}
}

func TestTransitionError(t *testing.T) {
	err := error(TransitionError{ID: "pr1", From: StatusDelivered, To: StatusApproved})
	if err.Error() != "purchase request pr1 cannot move from Delivered to Approved" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

type countingRule struct {
	name  string
	calls *int
	out   Result
}

func (r countingRule) Name() string { return r.name }

func (r countingRule) Evaluate(context.Context, RuleView, []Change) (Result, error) {
	*r.calls++
	return r.out, nil
}

func TestRulesEngineMergesResults(t *testing.T) {
	engine := NewRulesEngine()
	calls := 0
	engine.Register(countingRule{name: "warn", calls: &calls, out: Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn, Message: "w"}}}})
	engine.Register(countingRule{name: "block", calls: &calls, out: Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock, Message: "b"}}}})

	res, err := engine.Evaluate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected both rules to run, got %d", calls)
	}
	if !res.HasBlocking() {
		t.Fatalf("expected blocking result")
	}
	if warnings := res.Warnings(); len(warnings) != 1 || warnings[0].Rule != "warn" {
		t.Fatalf("unexpected warnings %+v", warnings)
	}
}

func TestRuleViolationError(t *testing.T) {
	err := error(RuleViolationError{Result: Result{Violations: []Violation{{Rule: "r", Severity: SeverityBlock}}}})
	var rve RuleViolationError
	if !errors.As(err, &rve) || len(rve.Result.Violations) != 1 {
		t.Fatalf("errors.As failed")
	}
}
