package mapping

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/govorilka/core/internal/pkg/pagination"
	"github.com/govorilka/core/internal/pkg/response"
)

// Handler exposes hashtag mapping management. Admin only: mappings steer
// what the channel sync publishes.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	mappings := rg.Group("/hashtag-mappings", authMW)

	mappings.GET("", h.list)
	mappings.GET("/:id", h.getByID)
	mappings.POST("", h.create)
	mappings.PUT("/:id", h.update)
	mappings.PATCH("/:id", h.update)
	mappings.DELETE("/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)

	mappings, pag, err := h.svc.List(q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, mappings, pag)
}

func (h *Handler) getByID(c *gin.Context) {
	m, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if m == nil {
		response.NotFoundMsg(c, "Маппинг не найден")
		return
	}
	response.OK(c, m)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateMappingDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	m, err := h.svc.Create(&dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrHashtagTaken):
			response.Conflict(c, err.Error())
		case errors.Is(err, ErrPageNotFound), errors.Is(err, ErrInvalidHashtag):
			response.BadRequest(c, err.Error())
		default:
			response.UnprocessableEntity(c, err.Error())
		}
		return
	}
	response.Created(c, m)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateMappingDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	m, err := h.svc.Update(c.Param("id"), &dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrHashtagTaken):
			response.Conflict(c, err.Error())
		case errors.Is(err, ErrPageNotFound), errors.Is(err, ErrInvalidHashtag):
			response.BadRequest(c, err.Error())
		default:
			response.UnprocessableEntity(c, err.Error())
		}
		return
	}
	if m == nil {
		response.NotFoundMsg(c, "Маппинг не найден")
		return
	}
	response.OK(c, m)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
