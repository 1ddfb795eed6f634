package telegram

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/govorilka/core/internal/config"
	"github.com/govorilka/core/internal/database"
	"github.com/govorilka/core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testChannelID = int64(-1001234567)

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
	return NewService(db, zap.NewNop(), nil, t.TempDir(), config.TelegramConfig{
		ChannelID:       testChannelID,
		ChannelUsername: "govorilka_channel",
	})
}

func seedPageAndMapping(t *testing.T, db *gorm.DB, hashtag string) (models.PageModel, models.HashtagMappingModel) {
	t.Helper()
	page := models.PageModel{Title: "Услуги", Slug: "uslugi-" + hashtag, Active: true}
	require.NoError(t, db.Create(&page).Error)

	mapping := models.HashtagMappingModel{
		Hashtag:        hashtag,
		PageID:         page.ID,
		Width:          models.CatalogWidthFull,
		HasOwnPage:     true,
		Separator:      "---",
		PreviewLength:  150,
		ImagePlacement: models.ImagePlacementNone,
		Active:         true,
	}
	require.NoError(t, db.Create(&mapping).Error)
	return page, mapping
}

func channelPost(messageID int64, text string) *Update {
	return &Update{
		ChannelPost: &Message{
			MessageID: messageID,
			Chat:      Chat{ID: testChannelID, Type: "channel", Username: "govorilka_channel"},
			Text:      text,
		},
	}
}

func rawPayload(upd *Update) map[string]interface{} {
	return map[string]interface{}{"update_id": float64(1)}
}

func TestNewPostCreatesCatalogItem(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	page, _ := seedPageAndMapping(t, db, "promo")

	upd := channelPost(10, "Новая акция #promo ---\nСкидка на диагностику речи")
	svc.HandleUpdate(context.Background(), upd, rawPayload(upd))

	var item models.CatalogItemModel
	require.NoError(t, db.Where("tg_message_id = ?", 10).First(&item).Error)
	assert.Equal(t, "Новая акция", item.Title)
	assert.Equal(t, "Скидка на диагностику речи", item.Text)
	assert.Equal(t, page.ID, item.PageID)
	assert.True(t, item.Active)
	assert.NotEmpty(t, item.Slug)

	var created int64
	db.Model(&models.SyncLogModel{}).Where("event = ?", models.SyncEventCreated).Count(&created)
	assert.EqualValues(t, 1, created)
}

func TestReplayedPostIsUpdateNotDuplicate(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedPageAndMapping(t, db, "promo")

	upd := channelPost(42, "Акция #promo ---\nТекст страницы")
	svc.HandleUpdate(context.Background(), upd, rawPayload(upd))
	svc.HandleUpdate(context.Background(), upd, rawPayload(upd))

	var count int64
	db.Model(&models.CatalogItemModel{}).Where("tg_message_id = ?", 42).Count(&count)
	assert.EqualValues(t, 1, count)

	var updated int64
	db.Model(&models.SyncLogModel{}).Where("event = ?", models.SyncEventUpdated).Count(&updated)
	assert.EqualValues(t, 1, updated)
}

func TestEditPreservesSlug(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedPageAndMapping(t, db, "promo")

	upd := channelPost(7, "Логопед #promo ---\nстарый текст")
	svc.HandleUpdate(context.Background(), upd, rawPayload(upd))

	var before models.CatalogItemModel
	require.NoError(t, db.Where("tg_message_id = ?", 7).First(&before).Error)

	edited := &Update{EditedChannelPost: &Message{
		MessageID: 7,
		Chat:      Chat{ID: testChannelID},
		Text:      "Совсем другой заголовок #promo ---\nновый текст",
	}}
	svc.HandleUpdate(context.Background(), edited, rawPayload(edited))

	var after models.CatalogItemModel
	require.NoError(t, db.Where("tg_message_id = ?", 7).First(&after).Error)
	assert.Equal(t, before.Slug, after.Slug, "slug must not be regenerated on edit")
	assert.Equal(t, "Совсем другой заголовок", after.Title)
	assert.Equal(t, "новый текст", after.Text)
}

func TestUnconfiguredChannelIsSkipped(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedPageAndMapping(t, db, "promo")

	upd := &Update{ChannelPost: &Message{
		MessageID: 5,
		Chat:      Chat{ID: 999, Username: "somebody_else"},
		Text:      "чужой пост #promo",
	}}
	svc.HandleUpdate(context.Background(), upd, rawPayload(upd))

	var items int64
	db.Model(&models.CatalogItemModel{}).Count(&items)
	assert.EqualValues(t, 0, items)

	var logs []models.SyncLogModel
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncEventSkipped, logs[0].Event)
}

func TestPostWithoutMappingIsSkipped(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	upd := channelPost(3, "пост без тегов вообще")
	svc.HandleUpdate(context.Background(), upd, rawPayload(upd))

	var items int64
	db.Model(&models.CatalogItemModel{}).Count(&items)
	assert.EqualValues(t, 0, items)

	var skipped int64
	db.Model(&models.SyncLogModel{}).Where("event = ?", models.SyncEventSkipped).Count(&skipped)
	assert.EqualValues(t, 1, skipped)
}

func TestFirstMappedHashtagWins(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	promoPage, _ := seedPageAndMapping(t, db, "promo")
	seedPageAndMapping(t, db, "sale")

	upd := channelPost(11, "Заголовок #promo #sale ---\nтекст")
	svc.HandleUpdate(context.Background(), upd, rawPayload(upd))

	var item models.CatalogItemModel
	require.NoError(t, db.Where("tg_message_id = ?", 11).First(&item).Error)
	assert.Equal(t, promoPage.ID, item.PageID)
}

func TestEditedPostLosingHashtagDeactivates(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedPageAndMapping(t, db, "news")

	upd := channelPost(20, "Новость #news ---\nтекст новости")
	svc.HandleUpdate(context.Background(), upd, rawPayload(upd))

	edited := &Update{EditedChannelPost: &Message{
		MessageID: 20,
		Chat:      Chat{ID: testChannelID},
		Text:      "Новость без тегов",
	}}
	svc.HandleUpdate(context.Background(), edited, rawPayload(edited))

	var item models.CatalogItemModel
	require.NoError(t, db.Where("tg_message_id = ?", 20).First(&item).Error)
	assert.False(t, item.Active)

	var count int64
	db.Model(&models.CatalogItemModel{}).Count(&count)
	assert.EqualValues(t, 1, count, "no new item may appear")
}

func TestDeleteSignalIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedPageAndMapping(t, db, "promo")

	upd := channelPost(30, "Акция #promo ---\nтекст")
	svc.HandleUpdate(context.Background(), upd, rawPayload(upd))

	deleted := &Update{DeletedChannelPost: &Message{
		MessageID: 30,
		Chat:      Chat{ID: testChannelID},
	}}
	svc.HandleUpdate(context.Background(), deleted, rawPayload(deleted))

	var item models.CatalogItemModel
	require.NoError(t, db.Where("tg_message_id = ?", 30).First(&item).Error)
	require.False(t, item.Active)
	firstUpdatedAt := item.UpdatedAt

	// the second delete must change nothing and be logged as skipped
	svc.HandleUpdate(context.Background(), deleted, rawPayload(deleted))

	require.NoError(t, db.Where("tg_message_id = ?", 30).First(&item).Error)
	assert.False(t, item.Active)
	assert.Equal(t, firstUpdatedAt, item.UpdatedAt)

	var skipped int64
	db.Model(&models.SyncLogModel{}).Where("event = ?", models.SyncEventSkipped).Count(&skipped)
	assert.EqualValues(t, 1, skipped)

	var deactivated int64
	db.Model(&models.SyncLogModel{}).Where("event = ?", models.SyncEventDeactivated).Count(&deactivated)
	assert.EqualValues(t, 1, deactivated)
}

func TestDeleteSignalForUnknownMessage(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)

	deleted := &Update{DeletedChannelPost: &Message{MessageID: 777, Chat: Chat{ID: testChannelID}}}
	svc.HandleUpdate(context.Background(), deleted, rawPayload(deleted))

	var skipped int64
	db.Model(&models.SyncLogModel{}).Where("event = ?", models.SyncEventSkipped).Count(&skipped)
	assert.EqualValues(t, 1, skipped)
}

func TestSlugCollisionGetsNumericSuffix(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedPageAndMapping(t, db, "promo")

	first := channelPost(100, "Логопед #promo ---\nраз")
	svc.HandleUpdate(context.Background(), first, rawPayload(first))
	second := channelPost(101, "Логопед #promo ---\nдва")
	svc.HandleUpdate(context.Background(), second, rawPayload(second))

	var one, two models.CatalogItemModel
	require.NoError(t, db.Where("tg_message_id = ?", 100).First(&one).Error)
	require.NoError(t, db.Where("tg_message_id = ?", 101).First(&two).Error)

	assert.Equal(t, "logoped", one.Slug)
	assert.Equal(t, "logoped-1", two.Slug)
}

func TestOrderAnchoringDisplacesExisting(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	page, mapping := seedPageAndMapping(t, db, "promo")

	// two hand-made items occupy positions 1 and 2
	for i := 1; i <= 2; i++ {
		item := models.CatalogItemModel{
			Title:  fmt.Sprintf("Ручная позиция %d", i),
			Slug:   fmt.Sprintf("manual-%d", i),
			PageID: page.ID,
			Order:  i,
			Active: true,
		}
		require.NoError(t, db.Create(&item).Error)
	}

	mapping.Order = 1
	require.NoError(t, db.Save(&mapping).Error)

	upd := channelPost(50, "Акция из канала #promo ---\nтекст")
	svc.HandleUpdate(context.Background(), upd, rawPayload(upd))

	var items []models.CatalogItemModel
	require.NoError(t, db.Where("page_id = ?", page.ID).Order("`order` asc").Find(&items).Error)
	require.Len(t, items, 3)

	assert.Equal(t, "Акция из канала", items[0].Title)
	assert.Equal(t, 1, items[0].Order)
	assert.Equal(t, "Ручная позиция 1", items[1].Title)
	assert.Equal(t, 2, items[1].Order)
	assert.Equal(t, "Ручная позиция 2", items[2].Title)
	assert.Equal(t, 3, items[2].Order)
}

func TestAppendAtEndWhenMappingOrderUnset(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	page, _ := seedPageAndMapping(t, db, "promo")

	existing := models.CatalogItemModel{
		Title: "Старая позиция", Slug: "old", PageID: page.ID, Order: 1, Active: true,
	}
	require.NoError(t, db.Create(&existing).Error)

	upd := channelPost(60, "Новая позиция #promo ---\nтекст")
	svc.HandleUpdate(context.Background(), upd, rawPayload(upd))

	var item models.CatalogItemModel
	require.NoError(t, db.Where("tg_message_id = ?", 60).First(&item).Error)
	assert.Equal(t, 2, item.Order)
}

func TestSyncDisabledBySettings(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	seedPageAndMapping(t, db, "promo")
	svc.SetEnabledFunc(func() bool { return false })

	upd := channelPost(70, "Акция #promo")
	svc.HandleUpdate(context.Background(), upd, rawPayload(upd))

	var items int64
	db.Model(&models.CatalogItemModel{}).Count(&items)
	assert.EqualValues(t, 0, items)
}
