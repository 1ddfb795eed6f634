package quiz

import (
	"errors"

	"github.com/gin-gonic/gin"
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
	quizzes := rg.Group("/quizzes")

	quizzes.GET("/slug/:slug", h.getBySlug)
	quizzes.POST("/slug/:slug/submit", h.submit)

	authed := quizzes.Group("", authMW)
	authed.GET("", h.list)
	authed.GET("/:id", h.getByID)
	authed.POST("", h.create)
	authed.PUT("/:id", h.update)
	authed.PATCH("/:id", h.update)
	authed.DELETE("/:id", h.delete)
}

// getBySlug GET /quizzes/slug/:slug
// The storefront view: no score weights, no result bands.
func (h *Handler) getBySlug(c *gin.Context) {
	quiz, err := h.svc.GetBySlug(c.Param("slug"), true)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if quiz == nil {
		response.NotFoundMsg(c, "Квиз не найден")
		return
	}
	response.OK(c, PublicView(quiz))
}

// submit POST /quizzes/slug/:slug/submit
func (h *Handler) submit(c *gin.Context) {
	var dto SubmitDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.svc.Submit(c.Request.Context(), c.Param("slug"), &dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrQuizNotFound):
			response.NotFoundMsg(c, err.Error())
		case errors.Is(err, ErrBadAnswers):
			response.UnprocessableEntity(c, err.Error())
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, result)
}

// list GET /quizzes  [auth]
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)

	quizzes, pag, err := h.svc.List(q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, quizzes, pag)
}

// getByID GET /quizzes/:id  [auth]
func (h *Handler) getByID(c *gin.Context) {
	quiz, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if quiz == nil {
		response.NotFoundMsg(c, "Квиз не найден")
		return
	}
	response.OK(c, quiz)
}

// create POST /quizzes  [auth]
func (h *Handler) create(c *gin.Context) {
	var dto CreateQuizDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	quiz, err := h.svc.Create(&dto)
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			response.Conflict(c, err.Error())
			return
		}
		response.UnprocessableEntity(c, err.Error())
		return
	}
	response.Created(c, quiz)
}

// update PUT /quizzes/:id  [auth]
func (h *Handler) update(c *gin.Context) {
	var dto UpdateQuizDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	quiz, err := h.svc.Update(c.Param("id"), &dto)
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			response.Conflict(c, err.Error())
			return
		}
		response.UnprocessableEntity(c, err.Error())
		return
	}
	if quiz == nil {
		response.NotFoundMsg(c, "Квиз не найден")
		return
	}
	response.OK(c, quiz)
}

// delete DELETE /quizzes/:id  [auth]
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
