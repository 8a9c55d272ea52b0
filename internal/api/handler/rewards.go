package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aimd54/congregation/internal/service/rewards"
)

// ListItems returns the active reward catalog.
// GET /api/v1/rewards/items.
func (h *Handler) ListItems(c *gin.Context) {
	items, err := h.rewardsService.ListItems(c.Request.Context(), true)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve reward catalog")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":        NewItemResources(items),
		"total_items":  len(items),
		"generated_at": time.Now().UTC(),
	})
}

// GetItem returns a single reward item.
// GET /api/v1/rewards/items/:id.
func (h *Handler) GetItem(c *gin.Context) {
	itemID, err := h.parseID(c, "item")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.rewardsService.GetItem(c.Request.Context(), itemID)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve reward item")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"item":         NewItemResource(item),
		"generated_at": time.Now().UTC(),
	})
}

// RedeemItem exchanges the caller's points for a reward item.
// POST /api/v1/rewards/items/:id/redeem.
func (h *Handler) RedeemItem(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	itemID, err := h.parseID(c, "item")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	if h.limiter != nil && h.redeemPerMinute > 0 {
		allowed, retryAfter, err := h.limiter.AllowPerMinute(ctx, fmt.Sprintf("redeem:%d", userID), h.redeemPerMinute)
		if err != nil {
			h.log.Warn().Err(err).Uint("user_id", userID).Msg("Rate limiter unavailable, allowing redemption")
		} else if !allowed {
			c.Header("Retry-After", retryAfterSeconds(retryAfter))
			h.errorResponse(c, http.StatusTooManyRequests, "Too many redemption attempts, please slow down")
			return
		}
	}

	receipt, err := h.rewardsService.Redeem(ctx, userID, itemID)
	if err != nil {
		h.handleError(c, err, "Failed to redeem reward")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reference":        receipt.Reference,
		"item":             NewItemResource(&receipt.Item),
		"points_spent":     receipt.PointsSpent,
		"remaining_points": receipt.RemainingPoints,
		"redeemed_at":      receipt.RedeemedAt,
		"message":          receipt.Message,
	})
}

// GetUserRedemptions returns a user's redemptions, newest first.
// GET /api/v1/users/:id/redemptions.
func (h *Handler) GetUserRedemptions(c *gin.Context) {
	userID, err := h.parseID(c, "user")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	redemptions, err := h.rewardsService.UserRedemptions(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve redemptions")
		return
	}

	out := make([]*RedemptionResource, 0, len(redemptions))
	for i := range redemptions {
		out = append(out, NewRedemptionResource(&redemptions[i], redemptions[i].RewardItem))
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":           userID,
		"redemptions":       out,
		"total_redemptions": len(out),
		"generated_at":      time.Now().UTC(),
	})
}

// CreateItem adds a reward item to the catalog.
// POST /api/v1/admin/rewards/items.
func (h *Handler) CreateItem(c *gin.Context) {
	var input rewards.ItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item, err := h.rewardsService.CreateItem(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err, "Failed to create reward item")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"item": NewItemResource(item),
	})
}

// UpdateItem edits a reward item. Omitted fields are left unchanged.
// PUT /api/v1/admin/rewards/items/:id.
func (h *Handler) UpdateItem(c *gin.Context) {
	itemID, err := h.parseID(c, "item")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var input rewards.ItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	item, err := h.rewardsService.UpdateItem(c.Request.Context(), itemID, input)
	if err != nil {
		h.handleError(c, err, "Failed to update reward item")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"item": NewItemResource(item),
	})
}
