package booking

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/govorilka/core/internal/modules/crm"
	"github.com/govorilka/core/internal/pkg/pagination"
	"github.com/govorilka/core/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	forms := rg.Group("/booking-forms")

	forms.GET("/slug/:slug", h.getBySlug)
	forms.POST("/slug/:slug/submit", h.submit)

	authed := forms.Group("", authMW)
	authed.GET("", h.list)
	authed.GET("/:id", h.getByID)
	authed.POST("", h.create)
	authed.PUT("/:id", h.update)
	authed.PATCH("/:id", h.update)
	authed.DELETE("/:id", h.delete)
}

// getBySlug GET /booking-forms/slug/:slug
// Public form definition for the storefront widget.
func (h *Handler) getBySlug(c *gin.Context) {
	form, err := h.svc.GetBySlug(c.Param("slug"), true)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if form == nil {
		response.NotFoundMsg(c, "Форма не найдена")
		return
	}
	response.OK(c, form)
}

// submit POST /booking-forms/slug/:slug/submit
func (h *Handler) submit(c *gin.Context) {
	var dto SubmitDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	captured, err := h.svc.Submit(c.Request.Context(), c.Param("slug"), &dto)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.Is(err, ErrFormNotFound):
			response.NotFoundMsg(c, err.Error())
		case errors.As(err, &verr):
			response.UnprocessableEntity(c, verr.Error())
		case errors.Is(err, crm.ErrBadPhone):
			response.UnprocessableEntity(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, gin.H{"lead_id": captured.ID})
}

// list GET /booking-forms  [auth]
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)

	forms, pag, err := h.svc.List(q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, forms, pag)
}

// getByID GET /booking-forms/:id  [auth]
func (h *Handler) getByID(c *gin.Context) {
	form, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if form == nil {
		response.NotFoundMsg(c, "Форма не найдена")
		return
	}
	response.OK(c, form)
}

// create POST /booking-forms  [auth]
func (h *Handler) create(c *gin.Context) {
	var dto CreateFormDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	form, err := h.svc.Create(&dto)
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			response.Conflict(c, err.Error())
			return
		}
		response.UnprocessableEntity(c, err.Error())
		return
	}
	response.Created(c, form)
}

// update PUT /booking-forms/:id  [auth]
func (h *Handler) update(c *gin.Context) {
	var dto UpdateFormDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	form, err := h.svc.Update(c.Param("id"), &dto)
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			response.Conflict(c, err.Error())
			return
		}
		response.UnprocessableEntity(c, err.Error())
		return
	}
	if form == nil {
		response.NotFoundMsg(c, "Форма не найдена")
		return
	}
	response.OK(c, form)
}

// delete DELETE /booking-forms/:id  [auth]
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
