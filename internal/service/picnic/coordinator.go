package picnic

import (
	"sort"
	"time"
)

// Entry is the view of a registration the assignment engine works on.
type Entry struct {
	ID           uint
	UserID       uint
	Games        []string
	RegisteredAt time.Time
}

func (e *Entry) plays(game string) bool {
	for _, g := range e.Games {
		if g == game {
			return true
		}
	}
	return false
}

// AssignCoordinators picks one coordinator per game, walking games in the
// given order. Within a game registrants are considered by arrival
// (RegisteredAt, then ID). The first registrant not yet coordinating another
// game wins. When every registrant already coordinates, the earliest
// registrant is reused. Games nobody registered for map to nil.
func AssignCoordinators(entries []Entry, games []string) map[string]*uint {
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].RegisteredAt.Equal(ordered[j].RegisteredAt) {
			return ordered[i].RegisteredAt.Before(ordered[j].RegisteredAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	assigned := make(map[uint]bool)
	result := make(map[string]*uint, len(games))

	for _, game := range games {
		var coordinator, fallback *uint

		for i := range ordered {
			if !ordered[i].plays(game) {
				continue
			}
			userID := ordered[i].UserID
			if fallback == nil {
				fallback = &userID
			}
			if !assigned[userID] {
				coordinator = &userID
				assigned[userID] = true
				break
			}
		}

		if coordinator == nil {
			coordinator = fallback
		}
		result[game] = coordinator
	}

	return result
}

// countReused returns how many games got a coordinator already chosen for
// an earlier game.
func countReused(assignment map[string]*uint, games []string) int {
	seen := make(map[uint]bool)
	reused := 0
	for _, game := range games {
		id := assignment[game]
		if id == nil {
			continue
		}
		if seen[*id] {
			reused++
		}
		seen[*id] = true
	}
	return reused
}
