// Package api exposes the admin and ingress HTTP surface under
// /api-notify/v1.
package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/moviehub/notify/internal/ingress"
	"github.com/moviehub/notify/internal/repository"
)

// Handlers bundles the route dependencies.
type Handlers struct {
	ingress   *ingress.Service
	templates repository.TemplateRepository
	scheduled repository.ScheduledRepository
	periodic  repository.PeriodicRepository
	verifier  *TokenVerifier
	log       *logrus.Logger
}

func NewHandlers(
	ing *ingress.Service,
	templates repository.TemplateRepository,
	scheduled repository.ScheduledRepository,
	periodic repository.PeriodicRepository,
	verifier *TokenVerifier,
	log *logrus.Logger,
) *Handlers {
	return &Handlers{
		ingress:   ing,
		templates: templates,
		scheduled: scheduled,
		periodic:  periodic,
		verifier:  verifier,
		log:       log,
	}
}

// NewRouter builds the gin engine with all routes mounted.
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogging(h.log))

	v1 := router.Group("/api-notify/v1")

	v1.POST("/messages/send-message/", h.sendMessage)

	templates := v1.Group("/templates", RequireJWT(h.verifier))
	{
		templates.POST("/", h.createTemplate)
		templates.GET("/", h.listTemplates)
		templates.GET("/:id", h.getTemplate)
		templates.PUT("/:id", h.updateTemplate)
		templates.DELETE("/:id", h.deleteTemplate)
	}

	scheduled := v1.Group("/scheduled")
	{
		scheduled.POST("/", RequireJWT(h.verifier), h.createScheduled)
		scheduled.GET("/", h.listScheduled)
		scheduled.GET("/:id", h.getScheduled)
		scheduled.PUT("/:id", RequireJWT(h.verifier), h.updateScheduled)
		scheduled.DELETE("/:id", RequireJWT(h.verifier), h.deleteScheduled)
	}

	periodic := v1.Group("/periodic")
	{
		periodic.POST("/", RequireJWT(h.verifier), h.createPeriodic)
		periodic.GET("/", h.listPeriodic)
		periodic.GET("/:id", h.getPeriodic)
		periodic.PUT("/:id", RequireJWT(h.verifier), h.updatePeriodic)
		periodic.DELETE("/:id", RequireJWT(h.verifier), h.deletePeriodic)
	}

	sockets := v1.Group("/sockets")
	{
		sockets.GET("/", h.socketsIndex)
		sockets.GET("/ws/send-message", h.sendMessageWS)
	}

	return router
}

// pagination converts ?page_number&page_size into skip/limit.
func pagination(c *gin.Context) (skip, limit int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page_number", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 50
	}
	return (page - 1) * size, size
}
