// Package ranking orders posts and comments by vote-weighted hotness, net score or recency.
// Rank is always derived from live counters at read time and never stored.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// hotnessDecaySeconds is how many seconds of age are worth one order of magnitude of net votes.
const hotnessDecaySeconds = 45000

// Mode selects an ordering.
type Mode string

const (
	// ModeHot orders by Hotness, newest first on ties.
	ModeHot Mode = "hot"
	// ModeTop orders by net votes, newest first on ties.
	ModeTop Mode = "top"
	// ModeNew orders by creation time only.
	ModeNew Mode = "new"
)

// ParseMode resolves a user supplied sort value. An empty value yields fallback.
func ParseMode(s string, fallback Mode) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return fallback, nil
	case ModeHot:
		return ModeHot, nil
	case ModeTop:
		return ModeTop, nil
	case ModeNew:
		return ModeNew, nil
	default:
		return "", fmt.Errorf("unknown sort %q (want hot, top or new)", s)
	}
}

// Item is the projection ranking needs from a post or comment.
type Item struct {
	ID        uint
	Upvotes   int
	Downvotes int
	CreatedAt time.Time
}

// Net is upvotes minus downvotes.
func (it Item) Net() int {
	return it.Upvotes - it.Downvotes
}

// Hotness is log10(max(net, 1)) + createdAt/45000, with createdAt in Unix seconds.
// Non-positive net scores contribute nothing, so among them recency alone decides.
func Hotness(net int, createdAt time.Time) float64 {
	n := net
	if n < 1 {
		n = 1
	}
	return math.Log10(float64(n)) + float64(createdAt.Unix())/hotnessDecaySeconds
}

// Sort orders items in place for the given mode. Ties fall back to createdAt
// descending and then id descending, so the order is total and deterministic.
func Sort(items []Item, mode Mode) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch mode {
		case ModeHot:
			ha, hb := Hotness(a.Net(), a.CreatedAt), Hotness(b.Net(), b.CreatedAt)
			if ha != hb {
				return ha > hb
			}
		case ModeTop:
			if a.Net() != b.Net() {
				return a.Net() > b.Net()
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}

// PageCount is the number of pages needed to show total items, limit per page.
func PageCount(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total-1)/limit + 1
}

// HasMore reports whether another page follows page.
func HasMore(total, page, limit int) bool {
	return page >= 1 && page < PageCount(total, limit)
}

// Window returns the ids of the page-th block of limit items (1-based page).
// Pages past the end are empty; the bound is checked before multiplying so
// huge page numbers cannot overflow.
func Window(items []Item, page, limit int) []uint {
	if page < 1 || page > PageCount(len(items), limit) {
		return nil
	}
	skip := (page - 1) * limit
	end := skip + limit
	if end > len(items) {
		end = len(items)
	}
	ids := make([]uint, 0, end-skip)
	for _, it := range items[skip:end] {
		ids = append(ids, it.ID)
	}
	return ids
}

// IDs returns the ids of all items in their current order.
func IDs(items []Item) []uint {
	ids := make([]uint, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// Reorder arranges rows to follow ids. Rows whose id is missing from ids are dropped.
func Reorder[T any](ids []uint, rows []T, idOf func(T) uint) []T {
	byID := make(map[uint]T, len(rows))
	for _, r := range rows {
		byID[idOf(r)] = r
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
