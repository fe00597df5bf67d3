package pairing

import (
	"fmt"
	"sort"

	"signal-trade-lab/internal/domain"
)

// SortMessages orders messages by (id ASC, timestamp ASC).
// Ids are assigned by the source in delivery order, so id order is delivery order.
func SortMessages(msgs []domain.RawMessage) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return compareMessages(msgs[i], msgs[j]) < 0
	})
}

// ValidateOrdering checks that ids are strictly increasing.
// Duplicate ids are an ordering violation.
func ValidateOrdering(msgs []domain.RawMessage) error {
	for i := 1; i < len(msgs); i++ {
		if msgs[i].ID <= msgs[i-1].ID {
			return fmt.Errorf("%w: message %d at index %d follows message %d",
				ErrInvalidOrdering, msgs[i].ID, i, msgs[i-1].ID)
		}
	}
	return nil
}

// Dedupe removes repeated ids from a sorted log, keeping the first occurrence.
func Dedupe(msgs []domain.RawMessage) []domain.RawMessage {
	if len(msgs) == 0 {
		return msgs
	}
	out := msgs[:1]
	for _, m := range msgs[1:] {
		if m.ID != out[len(out)-1].ID {
			out = append(out, m)
		}
	}
	return out
}

// compareMessages returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
func compareMessages(a, b domain.RawMessage) int {
	if a.ID != b.ID {
		if a.ID < b.ID {
			return -1
		}
		return 1
	}
	if a.Timestamp != b.Timestamp {
		if a.Timestamp < b.Timestamp {
			return -1
		}
		return 1
	}
	return 0
}
