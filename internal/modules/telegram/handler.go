package telegram

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/pkg/pagination"
	"github.com/govorilka/core/internal/pkg/response"
	"go.uber.org/zap"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Handler exposes the webhook endpoint and the read-only sync log.
type Handler struct {
	svc           *Service
	logger        *zap.Logger
	webhookSecret string
}

func NewHandler(svc *Service, logger *zap.Logger, webhookSecret string) *Handler {
	return &Handler{svc: svc, logger: logger, webhookSecret: webhookSecret}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	tg := rg.Group("/telegram")
	tg.POST("/webhook", h.handleWebhook)
	tg.GET("/sync-logs", authMW, h.listSyncLogs)
}

// handleWebhook acks every structurally valid JSON body with 200
// {"ok":true}, no matter what processing does internally. Upstream
// redelivery storms are worse than a swallowed error; the sync log keeps
// the truth.
func (h *Handler) handleWebhook(c *gin.Context) {
	if h.webhookSecret != "" && c.GetHeader(secretTokenHeader) != h.webhookSecret {
		response.Forbidden(c)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "не удалось прочитать тело запроса")
		return
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		response.BadRequest(c, "невалидный JSON")
		return
	}

	var upd Update
	if err := json.Unmarshal(body, &upd); err != nil {
		// structurally valid JSON of an unexpected shape: log and ack
		h.logger.Warn("update не распарсился в известную форму", zap.Error(err))
		h.svc.logEvent(models.SyncEventWarning, models.SyncStatusSkipped, 0, 0, "", nil,
			"неизвестная форма update, проигнорирована", err.Error(), raw)
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	h.svc.HandleUpdate(c.Request.Context(), &upd, raw)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) listSyncLogs(c *gin.Context) {
	q := pagination.FromContext(c)

	query := h.svc.db.Model(&models.SyncLogModel{}).Order("timestamp desc")
	if event := c.Query("event"); event != "" {
		query = query.Where("event = ?", event)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if rawID := c.Query("message_id"); rawID != "" {
		if id, err := strconv.ParseInt(rawID, 10, 64); err == nil {
			query = query.Where("message_id = ?", id)
		}
	}

	var logs []models.SyncLogModel
	meta, err := pagination.Paginate(query, q, &logs)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, logs, meta)
}
