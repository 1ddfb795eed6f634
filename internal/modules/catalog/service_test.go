package catalog

import (
	"fmt"
	"strings"
	"testing"

	"github.com/govorilka/core/internal/database"
	"github.com/govorilka/core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func seedPage(t *testing.T, db *gorm.DB, slug string, active bool) models.PageModel {
	t.Helper()
	page := models.PageModel{Title: "Страница " + slug, Slug: slug, Active: active}
	require.NoError(t, db.Create(&page).Error)
	return page
}

func TestCreateAssignsOrderAndSlug(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	page := seedPage(t, db, "uslugi", true)

	first, err := svc.Create(&CreateItemDTO{Title: "Постановка звуков", PageID: page.ID})
	require.NoError(t, err)
	second, err := svc.Create(&CreateItemDTO{Title: "Запуск речи", PageID: page.ID})
	require.NoError(t, err)

	assert.Equal(t, "postanovka-zvukov", first.Slug)
	assert.Equal(t, 1, first.Order)
	assert.Equal(t, 2, second.Order)
	assert.Equal(t, models.CatalogWidthFull, first.Width)
	assert.Equal(t, models.ButtonTypeNone, first.ButtonType)
}

func TestCreateAtPositionDisplaces(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	page := seedPage(t, db, "uslugi", true)

	a, err := svc.Create(&CreateItemDTO{Title: "A", PageID: page.ID})
	require.NoError(t, err)
	b, err := svc.Create(&CreateItemDTO{Title: "B", PageID: page.ID})
	require.NoError(t, err)

	pos := 1
	c, err := svc.Create(&CreateItemDTO{Title: "C", PageID: page.ID, Order: &pos})
	require.NoError(t, err)

	orders := map[string]int{}
	var items []models.CatalogItemModel
	require.NoError(t, db.Where("page_id = ?", page.ID).Find(&items).Error)
	for _, it := range items {
		orders[it.ID] = it.Order
	}
	assert.Equal(t, 1, orders[c.ID])
	assert.Equal(t, 2, orders[a.ID])
	assert.Equal(t, 3, orders[b.ID])
}

func TestCreateRejectsUnknownPage(t *testing.T) {
	svc := NewService(newTestDB(t))

	_, err := svc.Create(&CreateItemDTO{Title: "X", PageID: "no-such-page"})
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestListByPageSlugFiltersInactive(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	page := seedPage(t, db, "uslugi", true)

	_, err := svc.Create(&CreateItemDTO{Title: "Видимая", PageID: page.ID})
	require.NoError(t, err)
	inactive := false
	_, err = svc.Create(&CreateItemDTO{Title: "Скрытая", PageID: page.ID, Active: &inactive})
	require.NoError(t, err)

	items, err := svc.ListByPageSlug("uslugi")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Видимая", items[0].Title)
}

func TestListByPageSlugHiddenPage(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	seedPage(t, db, "hidden", false)

	_, err := svc.ListByPageSlug("hidden")
	assert.ErrorIs(t, err, ErrPageNotFound)
}

func TestDeleteReindexesRemaining(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	page := seedPage(t, db, "uslugi", true)

	a, err := svc.Create(&CreateItemDTO{Title: "A", PageID: page.ID})
	require.NoError(t, err)
	_, err = svc.Create(&CreateItemDTO{Title: "B", PageID: page.ID})
	require.NoError(t, err)
	c, err := svc.Create(&CreateItemDTO{Title: "C", PageID: page.ID})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(a.ID))

	var items []models.CatalogItemModel
	require.NoError(t, db.Where("page_id = ?", page.ID).Order("`order` asc").Find(&items).Error)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Order)
	assert.Equal(t, 2, items[1].Order)
	assert.Equal(t, c.ID, items[1].ID)
}

func TestReorderFullPermutation(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	page := seedPage(t, db, "uslugi", true)

	a, _ := svc.Create(&CreateItemDTO{Title: "A", PageID: page.ID})
	b, _ := svc.Create(&CreateItemDTO{Title: "B", PageID: page.ID})
	c, _ := svc.Create(&CreateItemDTO{Title: "C", PageID: page.ID})

	require.NoError(t, svc.Reorder(&ReorderDTO{
		PageID:  page.ID,
		ItemIDs: []string{c.ID, a.ID, b.ID},
	}))

	var items []models.CatalogItemModel
	require.NoError(t, db.Where("page_id = ?", page.ID).Order("`order` asc").Find(&items).Error)
	assert.Equal(t, []string{c.ID, a.ID, b.ID}, []string{items[0].ID, items[1].ID, items[2].ID})
}

func TestReorderRejectsPartialList(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	page := seedPage(t, db, "uslugi", true)

	a, _ := svc.Create(&CreateItemDTO{Title: "A", PageID: page.ID})
	_, _ = svc.Create(&CreateItemDTO{Title: "B", PageID: page.ID})

	err := svc.Reorder(&ReorderDTO{PageID: page.ID, ItemIDs: []string{a.ID}})
	assert.Error(t, err)
}

func TestReorderRejectsForeignItem(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	page := seedPage(t, db, "uslugi", true)
	other := seedPage(t, db, "other", true)

	a, _ := svc.Create(&CreateItemDTO{Title: "A", PageID: page.ID})
	x, _ := svc.Create(&CreateItemDTO{Title: "X", PageID: other.ID})

	err := svc.Reorder(&ReorderDTO{PageID: page.ID, ItemIDs: []string{x.ID}})
	assert.Error(t, err)
	_ = a
}

func TestMovingItemReindexesBothPages(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	src := seedPage(t, db, "src", true)
	dst := seedPage(t, db, "dst", true)

	a, _ := svc.Create(&CreateItemDTO{Title: "A", PageID: src.ID})
	b, _ := svc.Create(&CreateItemDTO{Title: "B", PageID: src.ID})

	moved, err := svc.Update(a.ID, &UpdateItemDTO{PageID: &dst.ID})
	require.NoError(t, err)
	assert.Equal(t, dst.ID, moved.PageID)
	assert.Equal(t, 1, moved.Order)

	var remaining models.CatalogItemModel
	require.NoError(t, db.First(&remaining, "id = ?", b.ID).Error)
	assert.Equal(t, 1, remaining.Order)
}
