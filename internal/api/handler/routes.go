package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/aimd54/congregation/pkg/logger"
)

// NewRouter builds the gin engine with middleware and every route registered.
func NewRouter(h *Handler, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log), Metrics())

	router.GET("/health", h.Health)
	h.RegisterRoutes(router.Group("/api/v1", UnitOfWork()))

	return router
}

// RegisterRoutes mounts the API endpoints on group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/points/award", h.AwardPoints)
	api.POST("/attendance", h.MarkAttendance)

	api.GET("/users/:id/points", h.GetUserPoints)
	api.GET("/users/:id/attendance", h.GetUserAttendance)
	api.GET("/users/:id/standing", h.GetUserStanding)
	api.GET("/users/:id/redemptions", h.GetUserRedemptions)

	api.GET("/rewards/items", h.ListItems)
	api.GET("/rewards/items/:id", h.GetItem)
	api.POST("/rewards/items/:id/redeem", h.RedeemItem)

	api.PUT("/picnic/registrations", h.RegisterForPicnic)
	api.GET("/picnic/registrations/me", h.GetMyRegistration)
	api.DELETE("/picnic/registrations/me", h.WithdrawFromPicnic)

	api.GET("/leaderboard", h.GetLeaderboard)

	admin := api.Group("/admin")
	admin.POST("/rewards/items", h.CreateItem)
	admin.PUT("/rewards/items/:id", h.UpdateItem)
	admin.GET("/picnic/report", h.GetPicnicReport)
	admin.GET("/picnic/games/:game", h.GetPicnicGame)
	admin.POST("/membership/evaluate", h.EvaluateMembership)
}
