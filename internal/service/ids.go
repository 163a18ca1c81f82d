package service

import (
	"github.com/google/uuid"

	"github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// Every stored row is keyed by a canonical uuid, so a malformed id can only
// ever name a missing resource.
func wellFormedID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func requireID(resource, id string) error {
	if !wellFormedID(id) {
		return errorutil.NewNotFound(resource, map[string]any{"id": id})
	}
	return nil
}

// filterMatchesNothing reports whether any set filter id is malformed.
func filterMatchesNothing(ids ...*string) bool {
	for _, id := range ids {
		if id != nil && !wellFormedID(*id) {
			return true
		}
	}
	return false
}
