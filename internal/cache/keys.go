package cache

import (
	"github.com/aimd54/congregation/internal/models"
)

const (
	rewardItemsActiveKey = "rewards:items:active"
	rewardItemsAllKey    = "rewards:items:all"
	leaderboardPrefix    = "leaderboard:points:"
)

// RewardItemsKey is the key holding the cached item list.
func RewardItemsKey(activeOnly bool) string {
	if activeOnly {
		return rewardItemsActiveKey
	}
	return rewardItemsAllKey
}

// RewardItemsKeys lists every item list key.
func RewardItemsKeys() []string {
	return []string{rewardItemsActiveKey, rewardItemsAllKey}
}

// LeaderboardKey is the key holding the cached ranking for role ("" for everyone).
func LeaderboardKey(role string) string {
	if role == "" {
		return leaderboardPrefix + "all"
	}
	return leaderboardPrefix + role
}

// LeaderboardKeys lists every ranking key.
func LeaderboardKeys() []string {
	keys := []string{LeaderboardKey("")}
	for _, role := range models.Roles() {
		keys = append(keys, LeaderboardKey(role))
	}
	return keys
}
