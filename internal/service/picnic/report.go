package picnic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aimd54/congregation/internal/metrics"
	"github.com/aimd54/congregation/internal/models"
	"github.com/aimd54/congregation/internal/repository"
)

// Coordinator is the public profile of a game coordinator.
type Coordinator struct {
	UserID       uint      `json:"user_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Member is a registrant of a game.
type Member struct {
	UserID        uint      `json:"user_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	RegisteredAt  time.Time `json:"registered_at"`
	SupportAmount *float64  `json:"support_amount"`
	IsCoordinator bool      `json:"is_coordinator"`
}

// GameGroup is one game with its coordinator and registrants.
type GameGroup struct {
	Game         string       `json:"game"`
	TotalMembers int          `json:"total_members"`
	Coordinator  *Coordinator `json:"coordinator"`
	Members      []Member     `json:"members"`
}

// Stats summarizes registrations for a year.
type Stats struct {
	TotalRegistrations int     `json:"total_registrations"`
	Capacity           int     `json:"capacity"`
	AvailableSlots     int     `json:"available_slots"`
	CapacityPercentage float64 `json:"capacity_percentage"`
	TotalSupport       float64 `json:"total_support"`
}

// Report is the coordinator report for a year.
type Report struct {
	Year   int         `json:"year"`
	Groups []GameGroup `json:"groups"`
	Stats  Stats       `json:"stats"`
}

type yearData struct {
	registrations []models.GameRegistration
	byUser        map[uint]*models.GameRegistration
	assignment    map[string]*uint
}

func (s *Service) load(ctx context.Context, year int) (*yearData, error) {
	registrations, err := repository.NewPicnicRepository(s.db).ListByYear(ctx, year)
	if err != nil {
		return nil, repository.Classify(err)
	}

	ids := make([]uint, len(registrations))
	for i := range registrations {
		ids[i] = registrations[i].UserID
	}
	users, err := repository.NewUserRepository(s.db).GetByIDs(ctx, ids)
	if err != nil {
		return nil, repository.Classify(err)
	}

	entries := make([]Entry, len(registrations))
	byUser := make(map[uint]*models.GameRegistration, len(registrations))
	for i := range registrations {
		r := &registrations[i]
		if u, ok := users[r.UserID]; ok {
			r.User = &u
		}
		entries[i] = Entry{ID: r.ID, UserID: r.UserID, Games: r.Games, RegisteredAt: r.RegisteredAt}
		byUser[r.UserID] = r
	}

	return &yearData{
		registrations: registrations,
		byUser:        byUser,
		assignment:    AssignCoordinators(entries, s.games),
	}, nil
}

func (d *yearData) group(game string) GameGroup {
	coordinatorID := d.assignment[game]

	group := GameGroup{Game: game, Members: []Member{}}
	for i := range d.registrations {
		r := &d.registrations[i]
		if !r.HasGame(game) {
			continue
		}
		group.Members = append(group.Members, newMember(r, coordinatorID != nil && *coordinatorID == r.UserID))
	}
	group.TotalMembers = len(group.Members)

	if coordinatorID != nil {
		group.Coordinator = newCoordinator(d.byUser[*coordinatorID])
	}
	return group
}

func newMember(r *models.GameRegistration, coordinator bool) Member {
	m := Member{
		UserID:        r.UserID,
		RegisteredAt:  r.RegisteredAt,
		SupportAmount: r.SupportAmount,
		IsCoordinator: coordinator,
	}
	if r.User != nil {
		m.Name = r.User.FullName()
		m.Email = r.User.Email
		m.Phone = r.User.Phone
	}
	return m
}

func newCoordinator(r *models.GameRegistration) *Coordinator {
	if r == nil {
		return nil
	}
	c := &Coordinator{UserID: r.UserID, RegisteredAt: r.RegisteredAt}
	if r.User != nil {
		c.Name = r.User.FullName()
		c.Email = r.User.Email
		c.Phone = r.User.Phone
	}
	return c
}

// GameDetail returns one game's coordinator and members for a year.
func (s *Service) GameDetail(ctx context.Context, year int, game string) (*GameGroup, error) {
	year = s.year(year)

	known := false
	for _, g := range s.games {
		if g == game {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%q: %w", game, ErrGameNotFound)
	}

	data, err := s.load(ctx, year)
	if err != nil {
		return nil, err
	}

	group := data.group(game)
	return &group, nil
}

// Report builds the coordinator report for a year. Groups are ordered by
// member count, largest first; ties keep the canonical game order.
func (s *Service) Report(ctx context.Context, year int) (*Report, error) {
	year = s.year(year)

	data, err := s.load(ctx, year)
	if err != nil {
		return nil, err
	}

	groups := make([]GameGroup, 0, len(s.games))
	for _, game := range s.games {
		groups = append(groups, data.group(game))
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].TotalMembers > groups[j].TotalMembers
	})

	report := &Report{
		Year:   year,
		Groups: groups,
		Stats:  s.stats(data.registrations),
	}

	metrics.RecordPicnicReport(countReused(data.assignment, s.games))
	metrics.SetPicnicRegistrations(yearLabel(year), report.Stats.TotalRegistrations)

	s.log.Debug().
		Int("year", year).
		Int("registrations", report.Stats.TotalRegistrations).
		Msg("Picnic report generated")

	return report, nil
}

func (s *Service) stats(registrations []models.GameRegistration) Stats {
	st := Stats{
		TotalRegistrations: len(registrations),
		Capacity:           s.capacity,
	}

	st.AvailableSlots = s.capacity - st.TotalRegistrations
	if st.AvailableSlots < 0 {
		st.AvailableSlots = 0
	}
	if s.capacity > 0 {
		pct := float64(st.TotalRegistrations) / float64(s.capacity) * 100
		st.CapacityPercentage = math.Round(pct*10) / 10
	}

	for _, r := range registrations {
		if r.SupportAmount != nil {
			st.TotalSupport += *r.SupportAmount
		}
	}
	st.TotalSupport = math.Round(st.TotalSupport*100) / 100

	return st
}
