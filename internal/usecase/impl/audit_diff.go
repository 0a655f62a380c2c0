package impl

import (
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

var versionKeys = map[string]struct{}{
	"__v":        {},
	"version":    {},
	"updatedAt":  {},
	"updated_at": {},
}

// untrackedField reports keys that never appear in a diff or a stored snapshot.
func untrackedField(key string) bool {
	if strings.HasPrefix(key, "_") {
		return true
	}
	if strings.Contains(strings.ToLower(key), "password") {
		return true
	}
	_, ok := versionKeys[key]

	return ok
}

// changedFields returns the sorted top-level keys whose values differ between before and after.
// A key missing on one side counts as changed.
func changedFields(before, after map[string]any) []string {
	if before == nil || after == nil {
		return nil
	}

	keys := make(map[string]struct{}, len(before)+len(after))
	for key := range before {
		keys[key] = struct{}{}
	}
	for key := range after {
		keys[key] = struct{}{}
	}

	var changed []string
	for key := range keys {
		if untrackedField(key) {
			continue
		}
		oldValue, inBefore := before[key]
		newValue, inAfter := after[key]
		if inBefore != inAfter || !sameValue(oldValue, newValue) {
			changed = append(changed, key)
		}
	}
	slices.Sort(changed)

	return changed
}

// sameValue uses cmp semantics (Equal methods, deep maps and slices). cmp panics on
// structs with unexported fields, which fall back to reflect.DeepEqual.
func sameValue(a, b any) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = reflect.DeepEqual(a, b)
		}
	}()

	return cmp.Equal(a, b)
}

// redactSnapshot drops untracked keys so secrets are never persisted.
func redactSnapshot(state map[string]any) map[string]any {
	if state == nil {
		return nil
	}

	redacted := maps.Clone(state)
	maps.DeleteFunc(redacted, func(key string, _ any) bool {
		return untrackedField(key)
	})

	return redacted
}

// resolveJourneyID prefers the explicit id, then a deterministic id per actor, ip and UTC hour,
// and finally a random id when no actor is known.
func resolveJourneyID(explicit string, actor *uuid.UUID, ip string, now time.Time) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if actor == nil {
		return uuid.NewString()
	}

	bucket := now.UTC().Format("2006-01-02T15")
	sum := sha256.Sum256([]byte(actor.String() + "|" + ip + "|" + bucket))

	return "j-" + hex.EncodeToString(sum[:16])
}
