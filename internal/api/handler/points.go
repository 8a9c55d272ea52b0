package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type awardRequest struct {
	UserID  uint     `json:"user_id" binding:"required"`
	Actions []string `json:"actions" binding:"required,min=1"`
}

type grant struct {
	Action string `json:"action"`
	Points int    `json:"points"`
}

// AwardPoints grants the catalog value of each action to a user. Repeated
// actions in one request are granted once.
// POST /api/v1/points/award.
func (h *Handler) AwardPoints(c *gin.Context) {
	var req awardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	grants := make([]grant, 0, len(req.Actions))
	total := 0
	for _, action := range req.Actions {
		granted, err := h.pointsService.Award(ctx, req.UserID, action)
		if err != nil {
			h.handleError(c, err, "Failed to award points")
			return
		}
		grants = append(grants, grant{Action: action, Points: granted})
		total += granted
	}

	balance, err := h.pointsService.Balance(ctx, req.UserID)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve balance")
		return
	}

	h.log.Info().
		Uint("user_id", req.UserID).
		Int("actions", len(req.Actions)).
		Int("total_awarded", total).
		Msg("Awarded points")

	c.JSON(http.StatusOK, gin.H{
		"user_id":       req.UserID,
		"grants":        grants,
		"total_awarded": total,
		"balance":       balance,
		"generated_at":  time.Now().UTC(),
	})
}

// GetUserPoints returns a user's balance and recent ledger entries.
// GET /api/v1/users/:id/points?limit=20.
func (h *Handler) GetUserPoints(c *gin.Context) {
	userID, err := h.parseID(c, "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := h.parseLimit(c, 20)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	balance, err := h.pointsService.Balance(ctx, userID)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve balance")
		return
	}

	history, err := h.pointsService.History(ctx, userID, limit)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve point history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"balance":      balance,
		"history":      NewLedgerEntryResources(history),
		"generated_at": time.Now().UTC(),
	})
}
