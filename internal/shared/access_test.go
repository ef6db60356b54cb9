package shared

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDecodeAccessRoundTrip(t *testing.T) {
	snap := AccessSnapshot{
		RoleCode:    "fnb_manager",
		Permissions: []string{"sales:read", "sales_approval:approve"},
		SyncedAt:    time.Now().UnixMilli(),
	}

	decoded, ok := DecodeAccess(snap.Encode())
	if !ok {
		t.Fatalf("expected valid snapshot")
	}
	if decoded.RoleCode != snap.RoleCode {
		t.Fatalf("role mismatch: %q", decoded.RoleCode)
	}
	if len(decoded.Permissions) != 2 {
		t.Fatalf("permissions mismatch: %v", decoded.Permissions)
	}
}

func TestDecodeAccessMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"not json":         "{",
		"wrong type":       `{"role_code":1,"permissions":[],"access_synced_at":12}`,
		"missing role":     `{"permissions":[],"access_synced_at":12}`,
		"missing perms":    `{"role_code":"fnb","access_synced_at":12}`,
		"missing synced":   `{"role_code":"fnb","permissions":[]}`,
		"zero synced":      `{"role_code":"fnb","permissions":[],"access_synced_at":0}`,
		"negative synced":  `{"role_code":"fnb","permissions":[],"access_synced_at":-5}`,
		"null permissions": `{"role_code":"fnb","permissions":null,"access_synced_at":12}`,
	}
	for name, raw := range cases {
		if _, ok := DecodeAccess(json.RawMessage(raw)); ok {
			t.Fatalf("%s: expected malformed document to be rejected", name)
		}
	}
}

func TestStaleAt(t *testing.T) {
	now := time.Now()
	interval := 5 * time.Minute

	fresh := AccessSnapshot{SyncedAt: now.Add(-4 * time.Minute).UnixMilli()}
	if fresh.StaleAt(now, interval) {
		t.Fatalf("4 minute old snapshot must not be stale")
	}

	stale := AccessSnapshot{SyncedAt: now.Add(-6 * time.Minute).UnixMilli()}
	if !stale.StaleAt(now, interval) {
		t.Fatalf("6 minute old snapshot must be stale")
	}
}
