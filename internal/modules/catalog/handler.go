package catalog

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/govorilka/core/internal/middleware"
	"github.com/govorilka/core/internal/pkg/markdown"
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
	items := rg.Group("/catalog")

	items.GET("/page/:slug", h.listByPageSlug)
	items.GET("/item/:slug", h.getItemBySlug)

	authed := items.Group("", authMW)
	authed.GET("", h.list)
	authed.GET("/:id", h.getByID)
	authed.POST("", h.create)
	authed.PUT("/:id", h.update)
	authed.PATCH("/:id", h.update)
	authed.DELETE("/:id", h.delete)
	authed.POST("/reorder", h.reorder)
}

// listByPageSlug GET /catalog/page/:slug
// The public storefront: active items of an active page in display order.
func (h *Handler) listByPageSlug(c *gin.Context) {
	items, err := h.svc.ListByPageSlug(c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			response.NotFoundMsg(c, "Страница не найдена")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, items)
}

// getItemBySlug GET /catalog/item/:slug
// Detail view for items that have their own page.
func (h *Handler) getItemBySlug(c *gin.Context) {
	item, err := h.svc.GetBySlug(c.Param("slug"), middleware.IsAuthenticated(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if item == nil {
		response.NotFoundMsg(c, "Позиция не найдена")
		return
	}
	response.OK(c, itemResponse{CatalogItemModel: *item, TextHTML: markdown.Render(item.Text)})
}

// list GET /catalog  [auth]
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)

	var lq ListQuery
	if err := c.ShouldBindQuery(&lq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	items, pag, err := h.svc.List(q, lq)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

// getByID GET /catalog/:id  [auth]
func (h *Handler) getByID(c *gin.Context) {
	item, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if item == nil {
		response.NotFoundMsg(c, "Позиция не найдена")
		return
	}
	response.OK(c, item)
}

// create POST /catalog  [auth]
func (h *Handler) create(c *gin.Context) {
	var dto CreateItemDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	item, err := h.svc.Create(&dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrSlugTaken):
			response.Conflict(c, err.Error())
		case errors.Is(err, ErrPageNotFound):
			response.BadRequest(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.Created(c, item)
}

// update PUT /catalog/:id  [auth]
func (h *Handler) update(c *gin.Context) {
	var dto UpdateItemDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	item, err := h.svc.Update(c.Param("id"), &dto)
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	if item == nil {
		response.NotFoundMsg(c, "Позиция не найдена")
		return
	}
	response.OK(c, item)
}

// delete DELETE /catalog/:id  [auth]
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

// reorder POST /catalog/reorder  [auth]
func (h *Handler) reorder(c *gin.Context) {
	var dto ReorderDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.Reorder(&dto); err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	response.NoContent(c)
}
