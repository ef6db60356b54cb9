package shared

import (
	"encoding/json"
	"time"
)

// AccessSnapshot is the cached authorization state attached to a session.
// RoleCode is empty when the user has no role assigned. SyncedAt is the
// epoch-millisecond timestamp of the last database resync.
type AccessSnapshot struct {
	RoleCode    string   `json:"role_code"`
	Permissions []string `json:"permissions"`
	SyncedAt    int64    `json:"access_synced_at"`
}

// accessWire mirrors AccessSnapshot with pointer fields so missing keys can
// be told apart from zero values when validating a cached document.
type accessWire struct {
	RoleCode    *string   `json:"role_code"`
	Permissions *[]string `json:"permissions"`
	SyncedAt    *int64    `json:"access_synced_at"`
}

// DecodeAccess parses a raw session access document. ok is false when the
// document is absent or malformed; callers must treat that as a stale
// snapshot and resynchronize, never as an error.
func DecodeAccess(raw json.RawMessage) (AccessSnapshot, bool) {
	if len(raw) == 0 {
		return AccessSnapshot{}, false
	}
	var wire accessWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return AccessSnapshot{}, false
	}
	if wire.RoleCode == nil || wire.Permissions == nil || wire.SyncedAt == nil {
		return AccessSnapshot{}, false
	}
	if *wire.SyncedAt <= 0 {
		return AccessSnapshot{}, false
	}
	return AccessSnapshot{
		RoleCode:    *wire.RoleCode,
		Permissions: *wire.Permissions,
		SyncedAt:    *wire.SyncedAt,
	}, true
}

// Encode serializes the snapshot for storage on a session.
func (a AccessSnapshot) Encode() json.RawMessage {
	data, _ := json.Marshal(a)
	return data
}

// StaleAt reports whether the snapshot is older than interval at the given
// instant.
func (a AccessSnapshot) StaleAt(now time.Time, interval time.Duration) bool {
	synced := time.UnixMilli(a.SyncedAt)
	return now.Sub(synced) > interval
}
