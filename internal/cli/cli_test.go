package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"opsledger/internal/core"
)

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("opsledger %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func runCommandExpectError(t *testing.T, args ...string) error {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		t.Fatalf("opsledger %s: expected error\n%s", strings.Join(args, " "), out.String())
	}
	return err
}

func setupWorkspace(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("OPSLEDGER_STORAGE_DRIVER", "sqlite")
	t.Setenv("OPSLEDGER_SQLITE_PATH", filepath.Join(dir, "opsledger.db"))
	t.Setenv("OPSLEDGER_BLOB_DRIVER", "fs")
	t.Setenv("OPSLEDGER_BLOB_FS_ROOT", filepath.Join(dir, "exports"))
	t.Setenv("OPSLEDGER_LOG_LEVEL", "error")
}

func TestWorkflowEndToEnd(t *testing.T) {
	setupWorkspace(t)

	out := runCommand(t, "login", "site.alex", "--password", "password")
	if !strings.Contains(out, "signed in as Alex (Site) (site)") {
		t.Fatalf("unexpected login output: %s", out)
	}

	var created core.PurchaseRequest
	out = runCommand(t, "--format", "json", "request", "create",
		"--line", "Cement 40kg|CEM-40|40|7.50",
		"--line", "Pipe 50mm||12")
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode create output: %v\n%s", err, out)
	}
	if created.Status != "Pending" || len(created.Lines) != 2 {
		t.Fatalf("unexpected request %+v", created)
	}

	// Site role may not approve.
	runCommandExpectError(t, "request", "approve", created.ID)

	runCommand(t, "login", "office.mia", "--password", "password")
	runCommand(t, "request", "approve", created.ID)
	out = runCommand(t, "request", "deliver", created.ID)
	if !strings.Contains(out, "delivered "+created.ID) {
		t.Fatalf("unexpected deliver output: %s", out)
	}

	out = runCommand(t, "inventory", "list")
	if !strings.Contains(out, "Cement 40kg") || !strings.Contains(out, "100") {
		t.Fatalf("cement not replenished:\n%s", out)
	}
	if !strings.Contains(out, "Pipe 50mm") {
		t.Fatalf("new item missing:\n%s", out)
	}

	out = runCommand(t, "status")
	if !strings.Contains(out, "signed in: Mia (Office) (office)") {
		t.Fatalf("unexpected status output: %s", out)
	}
	if !strings.Contains(out, "deliver PR") {
		t.Fatalf("recent activity missing delivery: %s", out)
	}

	out = runCommand(t, "audit", "export")
	if !strings.Contains(out, "exported") || !strings.Contains(out, "audit/") {
		t.Fatalf("unexpected export output: %s", out)
	}

	out = runCommand(t, "audit", "clear")
	if !strings.Contains(out, "cleared") {
		t.Fatalf("unexpected clear output: %s", out)
	}

	runCommand(t, "logout")
	runCommandExpectError(t, "logout")
}

func TestRejectsUnknownFormat(t *testing.T) {
	setupWorkspace(t)
	runCommandExpectError(t, "--format", "yaml", "status")
}

func TestParseLine(t *testing.T) {
	line, err := parseLine("Cement 40kg|CEM-40|40|7.50")
	if err != nil {
		t.Fatalf("parseLine: %v", err)
	}
	if line.Item != "Cement 40kg" || line.SKU != "CEM-40" || line.Qty != 40 || line.UnitCost != "7.50" {
		t.Fatalf("unexpected line %+v", line)
	}

	line, err = parseLine("Pipe 50mm||12")
	if err != nil {
		t.Fatalf("parseLine: %v", err)
	}
	if line.SKU != "" || line.UnitCost != "" || line.Qty != 12 {
		t.Fatalf("unexpected line %+v", line)
	}

	for _, raw := range []string{"", "one|two", "a|b|notanumber", "a|b|1|c|d"} {
		if _, err := parseLine(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
