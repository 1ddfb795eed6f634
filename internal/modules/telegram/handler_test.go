package telegram

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/govorilka/core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T, db *gorm.DB, secret string) (*gin.Engine, *Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := newTestService(t, db)
	h := NewHandler(svc, zap.NewNop(), secret)

	r := gin.New()
	api := r.Group("/api/v1")
	h.RegisterRoutes(api, func(c *gin.Context) { c.Next() })
	return r, svc
}

func postWebhook(r *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/telegram/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsInvalidJSON(t *testing.T) {
	db := newTestDB(t)
	r, _ := newTestRouter(t, db, "")

	w := postWebhook(r, "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookAcksValidUpdate(t *testing.T) {
	db := newTestDB(t)
	r, _ := newTestRouter(t, db, "")
	seedPageAndMapping(t, db, "promo")

	body := `{
		"update_id": 1,
		"channel_post": {
			"message_id": 500,
			"chat": {"id": -1001234567, "type": "channel", "username": "govorilka_channel"},
			"text": "Акция #promo ---\nтекст страницы"
		}
	}`
	w := postWebhook(r, body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok": true}`, w.Body.String())

	var count int64
	db.Model(&models.CatalogItemModel{}).Where("tg_message_id = ?", 500).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestWebhookAcksUnprocessableUpdate(t *testing.T) {
	db := newTestDB(t)
	r, _ := newTestRouter(t, db, "")

	// valid JSON with no recognizable update content still gets a 200
	w := postWebhook(r, `{"update_id": 2}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok": true}`, w.Body.String())
}

func TestWebhookSecretToken(t *testing.T) {
	db := newTestDB(t)
	r, _ := newTestRouter(t, db, "topsecret")

	w := postWebhook(r, `{"update_id": 3}`, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = postWebhook(r, `{"update_id": 3}`, map[string]string{secretTokenHeader: "wrong"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = postWebhook(r, `{"update_id": 3}`, map[string]string{secretTokenHeader: "topsecret"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSyncLogListing(t *testing.T) {
	db := newTestDB(t)
	r, svc := newTestRouter(t, db, "")
	seedPageAndMapping(t, db, "promo")

	upd := channelPost(600, "Акция #promo ---\nтекст")
	svc.HandleUpdate(t.Context(), upd, rawPayload(upd))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/telegram/sync-logs?event=created", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "created")
	assert.Contains(t, w.Body.String(), "600")
}
