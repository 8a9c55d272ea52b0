package scheduler

import (
	"github.com/aimd54/congregation/internal/mattermost"
	"github.com/aimd54/congregation/internal/models"
	"github.com/aimd54/congregation/internal/service/picnic"
)

// buildPromotedMembers transforms promoted users into the digest format.
func buildPromotedMembers(users []models.User) []mattermost.PromotedMember {
	members := make([]mattermost.PromotedMember, 0, len(users))

	for i := range users {
		name := users[i].FullName()
		if name == "" {
			name = "unknown"
		}
		members = append(members, mattermost.PromotedMember{
			Name:  name,
			Email: users[i].Email,
		})
	}

	return members
}

// buildCoordinatorSummary flattens a picnic report into the digest format.
func buildCoordinatorSummary(report *picnic.Report) mattermost.CoordinatorSummary {
	summary := mattermost.CoordinatorSummary{
		Year:               report.Year,
		Games:              make([]mattermost.GameCoordinator, 0, len(report.Groups)),
		TotalRegistrations: report.Stats.TotalRegistrations,
		AvailableSlots:     report.Stats.AvailableSlots,
		TotalSupport:       report.Stats.TotalSupport,
	}

	for _, group := range report.Groups {
		line := mattermost.GameCoordinator{
			Game:    group.Game,
			Members: group.TotalMembers,
		}
		if group.Coordinator != nil {
			line.Coordinator = group.Coordinator.Name
		}
		summary.Games = append(summary.Games, line)
	}

	return summary
}
