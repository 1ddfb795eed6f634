package booking

import (
	"fmt"
	"strings"
	"testing"

	"github.com/govorilka/core/internal/database"
	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/modules/lead"
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

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	leads := lead.NewService(db, secret.NewCodec("key"), nil, nil, zap.NewNop())
	return NewService(db, leads)
}

func TestCreateUsesDefaultFields(t *testing.T) {
	svc := newTestService(t, newTestDB(t))

	form, err := svc.Create(&CreateFormDTO{Name: "Запись на диагностику"})
	require.NoError(t, err)

	assert.Equal(t, "zapis-na-diagnostiku", form.Slug)
	assert.Equal(t, "Записаться", form.ButtonText)
	require.Len(t, form.Fields, 3)
	assert.Equal(t, "name", form.Fields[0].Name)
	assert.True(t, form.Fields[0].Required)
}

func TestCreateRejectsBrokenRules(t *testing.T) {
	svc := newTestService(t, newTestDB(t))

	_, err := svc.Create(&CreateFormDTO{
		Name: "Сломанная",
		Fields: []models.BookingField{
			{Name: "name", Kind: "text", Required: true},
			{Name: "other", Kind: "text", RequiredIf: "missing_field", RequiredIfValue: "x"},
		},
	})
	assert.Error(t, err)

	_, err = svc.Create(&CreateFormDTO{
		Name: "Дубликат поля",
		Fields: []models.BookingField{
			{Name: "name", Kind: "text"},
			{Name: "name", Kind: "text"},
		},
	})
	assert.Error(t, err)
}

func TestSubmitCapturesLead(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	form, err := svc.Create(&CreateFormDTO{Name: "Запись", Slug: "zapis"})
	require.NoError(t, err)

	captured, err := svc.Submit(t.Context(), "zapis", &SubmitDTO{Values: map[string]interface{}{
		"name":    "Анна",
		"phone":   "8 900 123-45-67",
		"comment": "хотим на вторник",
	}})
	require.NoError(t, err)

	var stored models.LeadModel
	require.NoError(t, db.First(&stored, "id = ?", captured.ID).Error)
	assert.Equal(t, "Анна", stored.Name)
	assert.Equal(t, models.LeadSourceBooking, stored.Source)
	require.NotNil(t, stored.FormID)
	assert.Equal(t, form.ID, *stored.FormID)
	assert.True(t, secret.IsEncrypted(stored.Comment))
}

func TestSubmitMissingRequiredField(t *testing.T) {
	svc := newTestService(t, newTestDB(t))

	_, err := svc.Create(&CreateFormDTO{Name: "Запись", Slug: "zapis"})
	require.NoError(t, err)

	_, err = svc.Submit(t.Context(), "zapis", &SubmitDTO{Values: map[string]interface{}{
		"name": "Без телефона",
	}})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "phone")
}

func TestSubmitConditionalRequirement(t *testing.T) {
	svc := newTestService(t, newTestDB(t))

	_, err := svc.Create(&CreateFormDTO{
		Name: "Анкета",
		Slug: "anketa",
		Fields: []models.BookingField{
			{Name: "name", Kind: "text", Required: true},
			{Name: "phone", Kind: "phone", Required: true},
			{Name: "visit_type", Kind: "select", Options: []string{"онлайн", "очно"}},
			// address is required only for in-person visits
			{Name: "address", Kind: "text", RequiredIf: "visit_type", RequiredIfValue: "очно"},
		},
	})
	require.NoError(t, err)

	// online visit: address not required
	_, err = svc.Submit(t.Context(), "anketa", &SubmitDTO{Values: map[string]interface{}{
		"name": "А", "phone": "9001234567", "visit_type": "онлайн",
	}})
	require.NoError(t, err)

	// in-person visit without address is rejected
	_, err = svc.Submit(t.Context(), "anketa", &SubmitDTO{Values: map[string]interface{}{
		"name": "Б", "phone": "9001234567", "visit_type": "очно",
	}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "address")

	// with the address it passes, extra value lands in lead extra
	captured, err := svc.Submit(t.Context(), "anketa", &SubmitDTO{Values: map[string]interface{}{
		"name": "В", "phone": "9001234567", "visit_type": "очно", "address": "ул. Ленина, 1",
	}})
	require.NoError(t, err)
	assert.Equal(t, "очно", captured.Extra["visit_type"])
	assert.Equal(t, "ул. Ленина, 1", captured.Extra["address"])
}

func TestSubmitRejectsUnknownSelectOption(t *testing.T) {
	svc := newTestService(t, newTestDB(t))

	_, err := svc.Create(&CreateFormDTO{
		Name: "Выбор",
		Slug: "vybor",
		Fields: []models.BookingField{
			{Name: "name", Kind: "text", Required: true},
			{Name: "phone", Kind: "phone", Required: true},
			{Name: "branch", Kind: "select", Options: []string{"центр", "север"}},
		},
	})
	require.NoError(t, err)

	_, err = svc.Submit(t.Context(), "vybor", &SubmitDTO{Values: map[string]interface{}{
		"name": "А", "phone": "9001234567", "branch": "юг",
	}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "branch")
}

func TestSubmitToInactiveForm(t *testing.T) {
	svc := newTestService(t, newTestDB(t))

	inactive := false
	_, err := svc.Create(&CreateFormDTO{Name: "Выключенная", Slug: "off", Active: &inactive})
	require.NoError(t, err)

	_, err = svc.Submit(t.Context(), "off", &SubmitDTO{Values: map[string]interface{}{
		"name": "А", "phone": "9001234567",
	}})
	assert.ErrorIs(t, err, ErrFormNotFound)
}
