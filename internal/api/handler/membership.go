package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type attendanceRequest struct {
	UserID      uint   `json:"user_id" binding:"required"`
	ServiceDate string `json:"service_date"` // YYYY-MM-DD, defaults to today
	Usher       bool   `json:"usher"`
}

// MarkAttendance records a user's presence at a service.
// POST /api/v1/attendance.
func (h *Handler) MarkAttendance(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	serviceDate := time.Now().UTC()
	if req.ServiceDate != "" {
		parsed, err := time.Parse(dateLayout, req.ServiceDate)
		if err != nil {
			h.errorResponse(c, http.StatusBadRequest, "invalid service_date, expected YYYY-MM-DD")
			return
		}
		serviceDate = parsed
	}

	result, err := h.membershipService.MarkAttendance(c.Request.Context(), req.UserID, serviceDate, req.Usher)
	if err != nil {
		h.handleError(c, err, "Failed to mark attendance")
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}

	c.JSON(status, gin.H{
		"attendance":     NewAttendanceResource(&result.Attendance),
		"created":        result.Created,
		"points_awarded": result.PointsAwarded,
		"promoted":       result.Promoted,
		"role":           result.Role,
	})
}

// GetUserAttendance returns a user's most recent attendances.
// GET /api/v1/users/:id/attendance?limit=20.
func (h *Handler) GetUserAttendance(c *gin.Context) {
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

	attendances, err := h.membershipService.History(c.Request.Context(), userID, limit)
	if err != nil {
		h.handleError(c, err, "Failed to retrieve attendance")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"attendance":   NewAttendanceResources(attendances),
		"total":        len(attendances),
		"generated_at": time.Now().UTC(),
	})
}

// EvaluateMembership promotes every eligible first-timer.
// POST /api/v1/admin/membership/evaluate.
func (h *Handler) EvaluateMembership(c *gin.Context) {
	promoted, err := h.membershipService.EvaluateAll(c.Request.Context())
	if err != nil {
		h.handleError(c, err, "Failed to evaluate membership")
		return
	}

	users := make([]*UserResource, 0, len(promoted))
	for i := range promoted {
		users = append(users, NewUserResource(&promoted[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"promoted":       users,
		"total_promoted": len(users),
		"generated_at":   time.Now().UTC(),
	})
}
