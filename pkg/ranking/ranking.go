// Package ranking orders the card list view.
package ranking

import (
	"sort"

	"github.com/kaizenisitmax-pixel/voxi/pkg/models"
)

// Partition is the result of ranking: open cards in display order, done
// cards in their input order. Cancelled cards are invisible to this view.
type Partition struct {
	Open []models.Card `json:"open"`
	Done []models.Card `json:"done"`
}

// priorityRank maps priority to sort rank. Unknown values rank as normal.
func priorityRank(p models.CardPriority) int {
	switch p {
	case models.PriorityUrgent:
		return 0
	case models.PriorityHigh:
		return 1
	case models.PriorityNormal:
		return 2
	case models.PriorityLow:
		return 3
	default:
		return 2
	}
}

// statusRank orders in-progress cards before merely-open ones. Anything that
// is not in_progress ranks as open.
func statusRank(s models.CardStatus) int {
	if s == models.CardStatusInProgress {
		return 0
	}
	return 1
}

// Rank partitions and sorts cards for the list view. It is a pure function:
// input elements are not mutated and re-invoking it on its own output yields
// the same order.
//
// Open cards sort by: priority (urgent first), then unread count descending,
// then in_progress before open, then last message time descending. The sort
// is stable, so fully tied cards keep their input order.
func Rank(items []models.Card) Partition {
	part := Partition{Open: []models.Card{}, Done: []models.Card{}}

	for _, item := range items {
		switch models.ParseStatus(string(item.Status)) {
		case models.CardStatusDone:
			part.Done = append(part.Done, item)
		case models.CardStatusCancelled:
			// Dropped from both partitions.
		default:
			part.Open = append(part.Open, item)
		}
	}

	sort.SliceStable(part.Open, func(i, j int) bool {
		a, b := part.Open[i], part.Open[j]

		pa, pb := priorityRank(a.Priority), priorityRank(b.Priority)
		if pa != pb {
			return pa < pb
		}

		if a.UnreadCount != b.UnreadCount {
			return a.UnreadCount > b.UnreadCount
		}

		sa, sb := statusRank(a.Status), statusRank(b.Status)
		if sa != sb {
			return sa < sb
		}

		return lastMessageUnix(a) > lastMessageUnix(b)
	})

	return part
}

func lastMessageUnix(c models.Card) int64 {
	if c.LastMessageAt == nil {
		return 0
	}
	return c.LastMessageAt.UnixMilli()
}
