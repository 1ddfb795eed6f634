package crm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/govorilka/core/internal/database"
	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/modules/settings"
	"github.com/govorilka/core/internal/pkg/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// fakeCRM is a minimal MoyKlass stand-in: getToken plus user creation,
// with optional forced-401 behaviour for retry tests.
type fakeCRM struct {
	*httptest.Server
	tokenCalls  atomic.Int64
	createCalls atomic.Int64
	lastCreate  map[string]interface{}
	reject401   atomic.Bool
}

func newFakeCRM(t *testing.T) *fakeCRM {
	t.Helper()
	f := &fakeCRM{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/company/auth/getToken", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"accessToken": fmt.Sprintf("tok-%d", f.tokenCalls.Load())})
	})
	mux.HandleFunc("/v1/company/users", func(w http.ResponseWriter, r *http.Request) {
		if f.reject401.Load() && r.Header.Get("x-access-token") == "tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.createCalls.Add(1)
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		f.lastCreate = body
		json.NewEncoder(w).Encode(map[string]int64{"id": 777})
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

func newPushService(t *testing.T, db *gorm.DB, fake *fakeCRM, codec *secret.Codec) *Service {
	t.Helper()
	settingsSvc := settings.NewService(db, codec)
	_, err := settingsSvc.Patch(map[string]json.RawMessage{
		"crm": json.RawMessage(`{"enable": true, "filial_id": 1, "manager_id": 5}`),
	})
	require.NoError(t, err)

	client := NewClient(db, zap.NewNop(), fake.URL, "api-key")
	return NewService(db, client, settingsSvc, codec, zap.NewNop())
}

func seedLead(t *testing.T, db *gorm.DB, codec *secret.Codec, comment string) models.LeadModel {
	t.Helper()
	enc, err := codec.Encrypt(comment)
	require.NoError(t, err)
	lead := models.LeadModel{
		Name:         "Мария",
		Phone:        "8 (900) 123-45-67",
		Email:        "maria@example.com",
		Source:       models.LeadSourceBooking,
		Comment:      enc,
		CRMPushState: models.CRMPushPending,
		Extra:        map[string]interface{}{"child_age": "4 года"},
	}
	require.NoError(t, db.Create(&lead).Error)
	return lead
}

func TestPushLeadSendsNormalizedPayload(t *testing.T) {
	db := newTestDB(t)
	fake := newFakeCRM(t)
	codec := secret.NewCodec("key")
	svc := newPushService(t, db, fake, codec)
	lead := seedLead(t, db, codec, "ребёнок не выговаривает Р")

	require.NoError(t, svc.PushLead(t.Context(), lead.ID))

	require.NotNil(t, fake.lastCreate)
	assert.Equal(t, "Мария", fake.lastCreate["name"])
	assert.Equal(t, "+79001234567", fake.lastCreate["phone"])
	assert.Equal(t, "ребёнок не выговаривает Р", fake.lastCreate["note"])

	var updated models.LeadModel
	require.NoError(t, db.First(&updated, "id = ?", lead.ID).Error)
	assert.Equal(t, models.CRMPushSent, updated.CRMPushState)
	require.NotNil(t, updated.CRMUserID)
	assert.EqualValues(t, 777, *updated.CRMUserID)
	assert.NotNil(t, updated.CRMPushedAt)
}

func TestPushLeadAppliesFieldMappings(t *testing.T) {
	db := newTestDB(t)
	fake := newFakeCRM(t)
	codec := secret.NewCodec("key")
	svc := newPushService(t, db, fake, codec)
	lead := seedLead(t, db, codec, "коммент")

	require.NoError(t, db.Create(&models.CRMFieldMappingModel{
		LocalField: "child_age", Kind: models.CRMFieldAttribute, RemoteID: 33, Active: true,
	}).Error)
	require.NoError(t, db.Create(&models.CRMFieldMappingModel{
		LocalField: "source", Kind: models.CRMFieldTag, RemoteID: 9, Active: true,
	}).Error)
	// inactive mappings are ignored
	require.NoError(t, db.Create(&models.CRMFieldMappingModel{
		LocalField: "email", Kind: models.CRMFieldAttribute, RemoteID: 44, Active: false,
	}).Error)

	require.NoError(t, svc.PushLead(t.Context(), lead.ID))

	attrs, _ := fake.lastCreate["attributes"].([]interface{})
	require.Len(t, attrs, 1)
	attr := attrs[0].(map[string]interface{})
	assert.EqualValues(t, 33, attr["attributeId"])
	assert.Equal(t, "4 года", attr["value"])

	tags, _ := fake.lastCreate["tags"].([]interface{})
	require.Len(t, tags, 1)
	assert.EqualValues(t, 9, tags[0])
}

func TestPushLeadRetriesOnceAfter401(t *testing.T) {
	db := newTestDB(t)
	fake := newFakeCRM(t)
	fake.reject401.Store(true)
	codec := secret.NewCodec("key")
	svc := newPushService(t, db, fake, codec)
	lead := seedLead(t, db, codec, "")

	require.NoError(t, svc.PushLead(t.Context(), lead.ID))

	assert.EqualValues(t, 2, fake.tokenCalls.Load(), "token must be re-fetched after 401")
	assert.EqualValues(t, 1, fake.createCalls.Load())
}

func TestPushLeadDisabledLeavesStatePending(t *testing.T) {
	db := newTestDB(t)
	fake := newFakeCRM(t)
	codec := secret.NewCodec("key")

	settingsSvc := settings.NewService(db, codec)
	client := NewClient(db, zap.NewNop(), fake.URL, "api-key")
	svc := NewService(db, client, settingsSvc, codec, zap.NewNop())
	lead := seedLead(t, db, codec, "")

	err := svc.PushLead(t.Context(), lead.ID)
	assert.ErrorIs(t, err, ErrDisabled)

	var updated models.LeadModel
	require.NoError(t, db.First(&updated, "id = ?", lead.ID).Error)
	assert.Equal(t, models.CRMPushPending, updated.CRMPushState)
}

func TestPushLeadBadPhoneMarksFailed(t *testing.T) {
	db := newTestDB(t)
	fake := newFakeCRM(t)
	codec := secret.NewCodec("key")
	svc := newPushService(t, db, fake, codec)

	lead := models.LeadModel{Name: "Без телефона", Phone: "123", CRMPushState: models.CRMPushPending}
	require.NoError(t, db.Create(&lead).Error)

	err := svc.PushLead(t.Context(), lead.ID)
	require.Error(t, err)

	var updated models.LeadModel
	require.NoError(t, db.First(&updated, "id = ?", lead.ID).Error)
	assert.Equal(t, models.CRMPushFailed, updated.CRMPushState)
	assert.NotEmpty(t, updated.CRMPushError)
}

func TestRequestLogRedactsSecrets(t *testing.T) {
	db := newTestDB(t)
	fake := newFakeCRM(t)
	codec := secret.NewCodec("key")
	svc := newPushService(t, db, fake, codec)
	lead := seedLead(t, db, codec, "")

	require.NoError(t, svc.PushLead(t.Context(), lead.ID))

	var logs []models.CRMRequestLogModel
	require.NoError(t, db.Find(&logs).Error)
	require.NotEmpty(t, logs)
	for _, entry := range logs {
		assert.NotContains(t, entry.ReqBody, "api-key")
		assert.NotContains(t, entry.RespBody, "tok-1")
	}
}

func TestRetryFailed(t *testing.T) {
	db := newTestDB(t)
	fake := newFakeCRM(t)
	codec := secret.NewCodec("key")
	svc := newPushService(t, db, fake, codec)

	lead := seedLead(t, db, codec, "")
	require.NoError(t, db.Model(&models.LeadModel{}).Where("id = ?", lead.ID).
		Updates(map[string]interface{}{"crm_push_state": models.CRMPushFailed, "crm_push_error": "timeout"}).Error)

	sent, err := svc.RetryFailed(t.Context(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	var updated models.LeadModel
	require.NoError(t, db.First(&updated, "id = ?", lead.ID).Error)
	assert.Equal(t, models.CRMPushSent, updated.CRMPushState)
}
