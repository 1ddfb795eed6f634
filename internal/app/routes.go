package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/govorilka/core/internal/middleware"
	"github.com/govorilka/core/internal/modules/auth"
	"github.com/govorilka/core/internal/modules/booking"
	"github.com/govorilka/core/internal/modules/catalog"
	"github.com/govorilka/core/internal/modules/crm"
	"github.com/govorilka/core/internal/modules/lead"
	"github.com/govorilka/core/internal/modules/mapping"
	"github.com/govorilka/core/internal/modules/media"
	"github.com/govorilka/core/internal/modules/page"
	"github.com/govorilka/core/internal/modules/quiz"
	"github.com/govorilka/core/internal/modules/settings"
	"github.com/govorilka/core/internal/modules/telegram"
	pkgredis "github.com/govorilka/core/internal/pkg/redis"
	"github.com/govorilka/core/internal/pkg/response"
	"github.com/govorilka/core/internal/pkg/taskqueue"
)

const apiPrefix = "/api/v1"

func (a *App) registerRoutes(rc *pkgredis.Client, deps *services, taskSvc *taskqueue.Service) {
	r := a.router
	authMW := middleware.Auth()

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	r.Static("/static", a.cfg.StaticDir())

	api := r.Group(apiPrefix)
	api.Use(middleware.OptionalAuth())
	api.Use(middleware.RateLimit(rc.Raw(), deps.notifier))
	api.Use(middleware.Idempotence(rc.Raw()))

	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		uptime := time.Since(processStart)
		c.JSON(http.StatusOK, gin.H{
			"timestamp": uptime.Milliseconds(),
			"humanize":  humanizeDuration(uptime),
		})
	})

	auth.NewHandler(deps.auth).RegisterRoutes(api, authMW)
	settings.NewHandler(deps.settings).RegisterRoutes(api, authMW)

	page.NewHandler(deps.pages).RegisterRoutes(api, authMW)
	catalog.NewHandler(deps.catalog).RegisterRoutes(api, authMW)
	mapping.NewHandler(deps.mappings).RegisterRoutes(api, authMW)

	booking.NewHandler(deps.booking).RegisterRoutes(api, authMW)
	quiz.NewHandler(deps.quiz).RegisterRoutes(api, authMW)
	lead.NewHandler(deps.leads).RegisterRoutes(api, authMW)
	crm.NewHandler(deps.crm).RegisterRoutes(api, authMW)
	media.NewHandler(deps.media).RegisterRoutes(api, authMW)

	telegram.NewHandler(deps.telegram, a.logger, a.cfg.Telegram.WebhookSecret).RegisterRoutes(api, authMW)

	a.registerJobRoutes(api, authMW)
	a.registerTaskRoutes(api, authMW, taskSvc)
}

// registerJobRoutes exposes the cron scheduler to the admin panel.
func (a *App) registerJobRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	jobs := rg.Group("/jobs", authMW)

	jobs.GET("", func(c *gin.Context) {
		response.OK(c, a.sched.List())
	})
	jobs.GET("/:name", func(c *gin.Context) {
		result, err := a.sched.Status(c.Param("name"))
		if err != nil {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.OK(c, result)
	})
	jobs.POST("/:name/run", func(c *gin.Context) {
		if err := a.sched.Trigger(c.Request.Context(), c.Param("name")); err != nil {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.NoContent(c)
	})
}

// registerTaskRoutes exposes the background task queue records.
func (a *App) registerTaskRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc, taskSvc *taskqueue.Service) {
	tasks := rg.Group("/tasks", authMW)

	tasks.GET("", func(c *gin.Context) {
		pageNum, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

		var taskType *string
		if v := c.Query("type"); v != "" {
			taskType = &v
		}
		var status *taskqueue.TaskStatus
		if v := c.Query("status"); v != "" {
			st := taskqueue.TaskStatus(v)
			status = &st
		}

		items, total, err := taskSvc.List(c.Request.Context(), pageNum, size, taskType, status)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": items, "total": total})
	})
	tasks.POST("/:id/cancel", func(c *gin.Context) {
		if err := taskSvc.Cancel(c.Request.Context(), c.Param("id")); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		response.NoContent(c)
	})
}
