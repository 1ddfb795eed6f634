package crm

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/pkg/pagination"
	"github.com/govorilka/core/internal/pkg/response"
	"gorm.io/gorm"
)

// Handler exposes the CRM integration surface: field mapping CRUD, the
// request audit log and a manual push trigger. Everything is admin only.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/crm", authMW)

	g.GET("/logs", h.listLogs)
	g.POST("/push/:lead_id", h.pushLead)

	m := g.Group("/field-mappings")
	m.GET("", h.listMappings)
	m.POST("", h.createMapping)
	m.PUT("/:id", h.updateMapping)
	m.PATCH("/:id", h.updateMapping)
	m.DELETE("/:id", h.deleteMapping)
}

// listLogs GET /crm/logs  [auth]
func (h *Handler) listLogs(c *gin.Context) {
	q := pagination.FromContext(c)

	statusCode := 0
	if raw := c.Query("status_code"); raw != "" {
		statusCode, _ = strconv.Atoi(raw)
	}

	logs, pag, err := h.svc.ListLogs(q, statusCode)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, logs, pag)
}

// pushLead POST /crm/push/:lead_id  [auth]
// Manual re-push of a single lead, bypassing the queue.
func (h *Handler) pushLead(c *gin.Context) {
	err := h.svc.PushLead(c.Request.Context(), c.Param("lead_id"))
	switch {
	case err == nil:
		response.OK(c, gin.H{"success": true})
	case errors.Is(err, ErrLeadNotFound):
		response.NotFoundMsg(c, err.Error())
	case errors.Is(err, ErrDisabled):
		response.UnprocessableEntity(c, err.Error())
	default:
		response.UnprocessableEntity(c, err.Error())
	}
}

type mappingDTO struct {
	LocalField string `json:"local_field" binding:"required"`
	Kind       string `json:"kind"`
	RemoteID   int64  `json:"remote_id" binding:"required"`
	Active     *bool  `json:"active"`
}

var validKinds = map[string]bool{
	models.CRMFieldAttribute: true,
	models.CRMFieldTag:       true,
	models.CRMFieldStatus:    true,
}

func (h *Handler) listMappings(c *gin.Context) {
	var mappings []models.CRMFieldMappingModel
	if err := h.svc.db.Order("local_field ASC").Find(&mappings).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, mappings)
}

func (h *Handler) createMapping(c *gin.Context) {
	var dto mappingDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if dto.Kind == "" {
		dto.Kind = models.CRMFieldAttribute
	}
	if !validKinds[dto.Kind] {
		response.BadRequest(c, "неизвестный тип маппинга: "+dto.Kind)
		return
	}

	var count int64
	h.svc.db.Model(&models.CRMFieldMappingModel{}).Where("local_field = ?", dto.LocalField).Count(&count)
	if count > 0 {
		response.Conflict(c, "маппинг для этого поля уже существует")
		return
	}

	m := models.CRMFieldMappingModel{
		LocalField: dto.LocalField,
		Kind:       dto.Kind,
		RemoteID:   dto.RemoteID,
		Active:     true,
	}
	if dto.Active != nil {
		m.Active = *dto.Active
	}
	if err := h.svc.db.Create(&m).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, m)
}

func (h *Handler) updateMapping(c *gin.Context) {
	var m models.CRMFieldMappingModel
	if err := h.svc.db.First(&m, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundMsg(c, "Маппинг не найден")
			return
		}
		response.InternalError(c, err)
		return
	}

	var dto struct {
		LocalField *string `json:"local_field"`
		Kind       *string `json:"kind"`
		RemoteID   *int64  `json:"remote_id"`
		Active     *bool   `json:"active"`
	}
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if dto.LocalField != nil {
		updates["local_field"] = *dto.LocalField
	}
	if dto.Kind != nil {
		if !validKinds[*dto.Kind] {
			response.BadRequest(c, "неизвестный тип маппинга: "+*dto.Kind)
			return
		}
		updates["kind"] = *dto.Kind
	}
	if dto.RemoteID != nil {
		updates["remote_id"] = *dto.RemoteID
	}
	if dto.Active != nil {
		updates["active"] = *dto.Active
	}

	if len(updates) > 0 {
		if err := h.svc.db.Model(&m).Updates(updates).Error; err != nil {
			response.InternalError(c, err)
			return
		}
	}
	response.OK(c, m)
}

func (h *Handler) deleteMapping(c *gin.Context) {
	if err := h.svc.db.Delete(&models.CRMFieldMappingModel{}, "id = ?", c.Param("id")).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
