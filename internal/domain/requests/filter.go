package requests

import (
	"fmt"
	"strings"
)

// ParseCriteria validates raw query values. Empty values default to the
// incoming tab and ALL kinds and statuses.
func ParseCriteria(tab, kind, status string) (Criteria, error) {
	criteria := Criteria{Tab: TabIncoming, Kind: KindAll, Status: StatusAll}

	switch Tab(strings.ToLower(strings.TrimSpace(tab))) {
	case "", TabIncoming:
	case TabSent:
		criteria.Tab = TabSent
	default:
		return Criteria{}, fmt.Errorf("%w: unknown tab %q", ErrInvalidFilter, tab)
	}

	switch value := Kind(strings.ToUpper(strings.TrimSpace(kind))); value {
	case "", KindAll:
	case KindApartment, KindApartmentInvite, KindMatch, KindGroup:
		criteria.Kind = value
	default:
		return Criteria{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidFilter, kind)
	}

	switch value := Status(strings.ToUpper(strings.TrimSpace(status))); value {
	case "", StatusAll:
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled, StatusNotRelevant:
		criteria.Status = value
	default:
		return Criteria{}, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, status)
	}

	return criteria, nil
}

// Filter selects the tab's list and keeps items matching both kind and status.
// It only reads the snapshot it is given.
func Filter(inbox Inbox, criteria Criteria) []UnifiedRequest {
	source := inbox.Incoming
	if criteria.Tab == TabSent {
		source = inbox.Sent
	}

	result := make([]UnifiedRequest, 0, len(source))
	for _, item := range source {
		if criteria.Kind != "" && criteria.Kind != KindAll && item.Kind != criteria.Kind {
			continue
		}
		if criteria.Status != "" && criteria.Status != StatusAll && item.Status != criteria.Status {
			continue
		}
		result = append(result, item)
	}
	return result
}
