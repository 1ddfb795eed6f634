package lead

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/govorilka/core/internal/modules/crm"
	"github.com/govorilka/core/internal/pkg/pagination"
	"github.com/govorilka/core/internal/pkg/response"
)

// Handler is the admin surface over captured leads. Public lead capture
// happens through booking forms and quizzes, not here.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	leads := rg.Group("/leads", authMW)

	leads.GET("", h.list)
	leads.GET("/:id", h.getByID)
	leads.POST("", h.create)
	leads.DELETE("/:id", h.delete)
}

// list GET /leads  [auth]
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)

	var lq ListQuery
	if err := c.ShouldBindQuery(&lq); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	leads, pag, err := h.svc.List(q, lq)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, leads, pag)
}

// getByID GET /leads/:id  [auth]
func (h *Handler) getByID(c *gin.Context) {
	lead, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if lead == nil {
		response.NotFoundMsg(c, "Заявка не найдена")
		return
	}
	response.OK(c, lead)
}

// create POST /leads  [auth]
// Manual lead entry from the admin panel (e.g. a phone call).
func (h *Handler) create(c *gin.Context) {
	var dto CreateLeadDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	lead, err := h.svc.Create(c.Request.Context(), &dto)
	if err != nil {
		if errors.Is(err, crm.ErrBadPhone) {
			response.BadRequest(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, lead)
}

// delete DELETE /leads/:id  [auth]
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
