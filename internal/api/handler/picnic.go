package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type registrationRequest struct {
	Year          int      `json:"year"`
	Games         []string `json:"games"`
	SupportAmount *float64 `json:"support_amount"`
}

// RegisterForPicnic creates or replaces the caller's game selection.
// PUT /api/v1/picnic/registrations.
func (h *Handler) RegisterForPicnic(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	registration, created, err := h.picnicService.Register(c.Request.Context(), userID, req.Year, req.Games, req.SupportAmount)
	if err != nil {
		h.handleError(c, err, "Failed to register for picnic")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	c.JSON(status, gin.H{
		"registration": NewRegistrationResource(registration, nil),
		"created":      created,
	})
}

// GetMyRegistration returns the caller's registration for a year.
// GET /api/v1/picnic/registrations/me?year=2026.
func (h *Handler) GetMyRegistration(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	year, err := h.parseYear(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	registration, err := h.picnicService.GetRegistration(c.Request.Context(), userID, year)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve picnic registration")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"registration": NewRegistrationResource(registration, nil),
	})
}

// WithdrawFromPicnic deletes the caller's registration for a year.
// DELETE /api/v1/picnic/registrations/me?year=2026.
func (h *Handler) WithdrawFromPicnic(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	year, err := h.parseYear(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.picnicService.Withdraw(c.Request.Context(), userID, year); err != nil {
		h.handleError(c, err, "Failed to withdraw picnic registration")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetPicnicReport returns games with coordinators and members.
// GET /api/v1/admin/picnic/report?year=2026.
func (h *Handler) GetPicnicReport(c *gin.Context) {
	year, err := h.parseYear(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.picnicService.Report(c.Request.Context(), year)
	if err != nil {
		h.handleError(c, err, "Failed to build picnic report")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"year":         report.Year,
		"groups":       report.Groups,
		"stats":        report.Stats,
		"generated_at": time.Now().UTC(),
	})
}

// GetPicnicGame returns one game with its coordinator and members.
// GET /api/v1/admin/picnic/games/:game?year=2026.
func (h *Handler) GetPicnicGame(c *gin.Context) {
	year, err := h.parseYear(c)
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	group, err := h.picnicService.GameDetail(c.Request.Context(), year, c.Param("game"))
	if err != nil {
		h.handleError(c, err, "Failed to retrieve picnic game")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"game":         group,
		"generated_at": time.Now().UTC(),
	})
}
