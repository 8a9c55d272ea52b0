package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/congregation/internal/models"
)

// GetLeaderboard returns users ranked by points.
// GET /api/v1/leaderboard?role=member&limit=10.
func (h *Handler) GetLeaderboard(c *gin.Context) {
	role := c.Query("role")
	if err := h.validateRole(role); err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := h.parseLimit(c, 10)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.leaderboardService.GetLeaderboard(c.Request.Context(), role, limit)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve leaderboard")
		return
	}

	h.log.Debug().
		Str("role", role).
		Int("limit", limit).
		Int("entries", len(entries)).
		Msg("Retrieved leaderboard")

	c.JSON(http.StatusOK, gin.H{
		"leaderboard":   entries,
		"role":          role,
		"total_entries": len(entries),
		"generated_at":  time.Now().UTC(),
	})
}

// GetUserStanding returns a user's rank and lifetime points.
// GET /api/v1/users/:id/standing.
func (h *Handler) GetUserStanding(c *gin.Context) {
	userID, err := h.parseID(c, "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	standing, err := h.leaderboardService.GetUserStanding(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve user standing")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"standing":     standing,
		"generated_at": time.Now().UTC(),
	})
}

// validateRole checks the optional role filter.
func (h *Handler) validateRole(role string) error {
	if role == "" || models.IsValidRole(role) {
		return nil
	}
	return fmt.Errorf("invalid role: %s (must be one of: %v)", role, models.Roles())
}
