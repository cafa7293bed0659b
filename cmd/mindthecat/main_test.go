package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func field(t *testing.T, out, name string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, name+":"); ok {
			return strings.TrimSpace(v)
		}
	}
	t.Fatalf("no %q in output %q", name, out)
	return ""
}

func TestUserAndGroupCommands(t *testing.T) {
	t.Setenv("MINDTHECAT_DB_PATH", filepath.Join(t.TempDir(), "test.db"))
	t.Setenv("MINDTHECAT_LOG_LEVEL", "error")

	out, err := run(t, "user", "create", "Ana")
	if err != nil {
		t.Fatalf("user create: %v", err)
	}
	userID := field(t, out, "id")
	if token := field(t, out, "token"); !strings.HasPrefix(token, userID+".") {
		t.Errorf("token = %q, want prefix %q", token, userID+".")
	}

	out, err = run(t, "group", "create", "Flat 3B", "--user", userID)
	if err != nil {
		t.Fatalf("group create: %v", err)
	}
	groupID := field(t, out, "id")

	out, err = run(t, "user", "create", "Ben")
	if err != nil {
		t.Fatalf("user create: %v", err)
	}
	if _, err := run(t, "group", "add", groupID, field(t, out, "id")); err != nil {
		t.Errorf("group add: %v", err)
	}
	if _, err := run(t, "group", "add", groupID, "ghost"); err == nil {
		t.Error("group add with unknown user succeeded")
	}

	out, err = run(t, "check", "--group", groupID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "0 of 0 overdue") {
		t.Errorf("check output = %q", out)
	}
}

func TestRequiredFlags(t *testing.T) {
	t.Setenv("MINDTHECAT_DB_PATH", filepath.Join(t.TempDir(), "test.db"))

	if _, err := run(t, "group", "create", "x"); err == nil || !strings.Contains(err.Error(), "--user") {
		t.Errorf("group create without --user: err = %v", err)
	}
	if _, err := run(t, "watch"); err == nil || !strings.Contains(err.Error(), "--user") {
		t.Errorf("watch without --user: err = %v", err)
	}
	if _, err := run(t, "sweep"); err == nil || !strings.Contains(err.Error(), "VAPID") {
		t.Errorf("sweep without keys: err = %v", err)
	}
}

func TestVAPIDKeys(t *testing.T) {
	out, err := run(t, "vapid-keys")
	if err != nil {
		t.Fatalf("vapid-keys: %v", err)
	}
	if field(t, out, "vapid_public_key") == "" || field(t, out, "vapid_private_key") == "" {
		t.Errorf("output = %q", out)
	}
}
