package media

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/govorilka/core/internal/pkg/pagination"
	"github.com/govorilka/core/internal/pkg/response"
)

const maxUploadBytes = 30 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	files := rg.Group("/media", authMW)

	files.POST("/upload", h.upload)
	files.GET("", h.list)
	files.GET("/:id", h.getByID)
	files.DELETE("/:id", h.delete)
}

// upload POST /media/upload  [auth]
func (h *Handler) upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "файл не передан")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		response.UnprocessableEntity(c, "файл слишком большой")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		response.InternalError(c, err)
		return
	}

	file, err := h.svc.SaveUpload(c.Request.Context(), fileHeader.Filename, data)
	if err != nil {
		if errors.Is(err, ErrEmptyFile) {
			response.UnprocessableEntity(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, file)
}

// list GET /media  [auth]
func (h *Handler) list(c *gin.Context) {
	var filter ListQuery
	_ = c.ShouldBindQuery(&filter)

	files, pag, err := h.svc.List(pagination.FromContext(c), filter)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, files, pag)
}

// getByID GET /media/:id  [auth]
func (h *Handler) getByID(c *gin.Context) {
	file, err := h.svc.GetByID(c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if file == nil {
		response.NotFoundMsg(c, "Файл не найден")
		return
	}
	response.OK(c, file)
}

// delete DELETE /media/:id  [auth]
func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
