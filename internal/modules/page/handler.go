package page

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
	pages := rg.Group("/pages")

	pages.GET("", h.list)
	pages.GET("/slug/:slug", h.getBySlug)

	authed := pages.Group("", authMW)
	authed.GET("/:id", h.getByID)
	authed.POST("", h.create)
	authed.PUT("/:id", h.update)
	authed.PATCH("/:id", h.update)
	authed.DELETE("/:id", h.delete)
}

// list GET /pages
// Anonymous callers see active pages only.
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	activeOnly := !middleware.IsAuthenticated(c)

	pages, pag, err := h.svc.List(q, activeOnly)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, pages, pag)
}

// getBySlug GET /pages/slug/:slug
func (h *Handler) getBySlug(c *gin.Context) {
	activeOnly := !middleware.IsAuthenticated(c)

	page, err := h.svc.GetBySlug(c.Param("slug"), activeOnly)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if page == nil {
		response.NotFoundMsg(c, "Страница не найдена")
		return
	}
	response.OK(c, pageResponse{PageModel: *page, TextHTML: markdown.Render(page.Text)})
}

// getByID GET /pages/:id  [auth]
func (h *Handler) getByID(c *gin.Context) {
	page, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if page == nil {
		response.NotFoundMsg(c, "Страница не найдена")
		return
	}
	response.OK(c, page)
}

// create POST /pages  [auth]
func (h *Handler) create(c *gin.Context) {
	var dto CreatePageDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	page, err := h.svc.Create(&dto)
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			response.Conflict(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, page)
}

// update PUT /pages/:id  [auth]
func (h *Handler) update(c *gin.Context) {
	var dto UpdatePageDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	page, err := h.svc.Update(c.Param("id"), &dto)
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			response.Conflict(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	if page == nil {
		response.NotFoundMsg(c, "Страница не найдена")
		return
	}
	response.OK(c, page)
}

// delete DELETE /pages/:id  [auth]
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		response.UnprocessableEntity(c, err.Error())
		return
	}
	response.NoContent(c)
}
