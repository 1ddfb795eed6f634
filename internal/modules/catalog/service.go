package catalog

import (
	"errors"
	"fmt"

	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/pkg/pagination"
	"github.com/govorilka/core/internal/pkg/response"
	"github.com/govorilka/core/internal/pkg/slug"
	"gorm.io/gorm"
)

var (
	ErrSlugTaken    = errors.New("позиция с таким slug уже существует")
	ErrPageNotFound = errors.New("страница не найдена")
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) List(q pagination.Query, lq ListQuery) ([]models.CatalogItemModel, response.Pagination, error) {
	tx := s.db.Model(&models.CatalogItemModel{}).Order("`order` ASC, created_at ASC")
	if lq.PageID != "" {
		tx = tx.Where("page_id = ?", lq.PageID)
	}
	if lq.Active != nil {
		tx = tx.Where("active = ?", *lq.Active)
	}
	if lq.Synced != nil {
		if *lq.Synced {
			tx = tx.Where("tg_message_id IS NOT NULL")
		} else {
			tx = tx.Where("tg_message_id IS NULL")
		}
	}

	var items []models.CatalogItemModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// ListByPageSlug returns the active items of an active page in display
// order. This is the public storefront query.
func (s *Service) ListByPageSlug(pageSlug string) ([]models.CatalogItemModel, error) {
	var page models.PageModel
	err := s.db.Where("slug = ? AND active = ?", pageSlug, true).First(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPageNotFound
	}
	if err != nil {
		return nil, err
	}

	var items []models.CatalogItemModel
	err = s.db.Where("page_id = ? AND active = ?", page.ID, true).
		Order("`order` ASC, created_at ASC").
		Find(&items).Error
	return items, err
}

func (s *Service) GetByID(id string) (*models.CatalogItemModel, error) {
	var item models.CatalogItemModel
	if err := s.db.First(&item, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// GetBySlug returns an active item that has its own page.
func (s *Service) GetBySlug(itemSlug string, isAdmin bool) (*models.CatalogItemModel, error) {
	tx := s.db.Where("slug = ?", itemSlug)
	if !isAdmin {
		tx = tx.Where("active = ? AND has_own_page = ?", true, true)
	}
	var item models.CatalogItemModel
	if err := tx.First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (s *Service) Create(dto *CreateItemDTO) (*models.CatalogItemModel, error) {
	var page models.PageModel
	if err := s.db.First(&page, "id = ?", dto.PageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPageNotFound
		}
		return nil, err
	}

	item := models.CatalogItemModel{
		Title:        dto.Title,
		Slug:         dto.Slug,
		CardText:     dto.CardText,
		Text:         dto.Text,
		CardImage:    dto.CardImage,
		PageImage:    dto.PageImage,
		Width:        dto.Width,
		ButtonType:   dto.ButtonType,
		ButtonTarget: dto.ButtonTarget,
		PageID:       dto.PageID,
		Active:       true,
	}
	if item.Slug == "" {
		item.Slug = slug.Make(dto.Title)
	}
	if item.Width == "" {
		item.Width = models.CatalogWidthFull
	}
	if item.ButtonType == "" {
		item.ButtonType = models.ButtonTypeNone
	}
	if dto.HasOwnPage != nil {
		item.HasOwnPage = *dto.HasOwnPage
	}
	if dto.Active != nil {
		item.Active = *dto.Active
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		tx.Model(&models.CatalogItemModel{}).Where("slug = ?", item.Slug).Count(&count)
		if count > 0 {
			return ErrSlugTaken
		}
		if dto.Order != nil && *dto.Order > 0 {
			if err := tx.Model(&models.CatalogItemModel{}).
				Where("page_id = ? AND `order` >= ?", item.PageID, *dto.Order).
				UpdateColumn("order", gorm.Expr("`order` + 1")).Error; err != nil {
				return err
			}
			item.Order = *dto.Order
		} else {
			var maxOrder int
			tx.Model(&models.CatalogItemModel{}).
				Where("page_id = ?", item.PageID).
				Select("COALESCE(MAX(`order`), 0)").Scan(&maxOrder)
			item.Order = maxOrder + 1
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		return ReindexPage(tx, item.PageID)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) Update(id string, dto *UpdateItemDTO) (*models.CatalogItemModel, error) {
	item, err := s.GetByID(id)
	if err != nil || item == nil {
		return item, err
	}

	updates := map[string]interface{}{}
	if dto.Title != nil {
		updates["title"] = *dto.Title
	}
	if dto.CardText != nil {
		updates["card_text"] = *dto.CardText
	}
	if dto.Text != nil {
		updates["text"] = *dto.Text
	}
	if dto.CardImage != nil {
		updates["card_image"] = *dto.CardImage
	}
	if dto.PageImage != nil {
		updates["page_image"] = *dto.PageImage
	}
	if dto.Width != nil {
		updates["width"] = *dto.Width
	}
	if dto.HasOwnPage != nil {
		updates["has_own_page"] = *dto.HasOwnPage
	}
	if dto.ButtonType != nil {
		updates["button_type"] = *dto.ButtonType
	}
	if dto.ButtonTarget != nil {
		updates["button_target"] = *dto.ButtonTarget
	}
	if dto.PageID != nil && *dto.PageID != item.PageID {
		var count int64
		s.db.Model(&models.PageModel{}).Where("id = ?", *dto.PageID).Count(&count)
		if count == 0 {
			return nil, ErrPageNotFound
		}
		updates["page_id"] = *dto.PageID
	}
	if dto.Order != nil {
		updates["order"] = *dto.Order
	}
	if dto.Active != nil {
		updates["active"] = *dto.Active
	}

	if len(updates) == 0 {
		return item, nil
	}

	oldPageID := item.PageID
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(item).Updates(updates).Error; err != nil {
			return err
		}
		if err := ReindexPage(tx, item.PageID); err != nil {
			return err
		}
		if item.PageID != oldPageID {
			return ReindexPage(tx, oldPageID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *Service) Delete(id string) error {
	item, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if item == nil {
		return nil
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.CatalogItemModel{}, "id = ?", id).Error; err != nil {
			return err
		}
		return ReindexPage(tx, item.PageID)
	})
}

// Reorder applies an explicit full ordering of a page's items. Every item
// of the page must be listed exactly once.
func (s *Service) Reorder(dto *ReorderDTO) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var items []models.CatalogItemModel
		if err := tx.Where("page_id = ?", dto.PageID).Find(&items).Error; err != nil {
			return err
		}

		known := make(map[string]bool, len(items))
		for _, it := range items {
			known[it.ID] = true
		}
		if len(dto.ItemIDs) != len(items) {
			return fmt.Errorf("ожидалось %d позиций, получено %d", len(items), len(dto.ItemIDs))
		}
		seen := make(map[string]bool, len(dto.ItemIDs))
		for _, id := range dto.ItemIDs {
			if !known[id] {
				return fmt.Errorf("позиция %s не принадлежит странице", id)
			}
			if seen[id] {
				return fmt.Errorf("позиция %s указана дважды", id)
			}
			seen[id] = true
		}

		for i, id := range dto.ItemIDs {
			if err := tx.Model(&models.CatalogItemModel{}).
				Where("id = ?", id).
				UpdateColumn("order", i+1).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ReindexPage renumbers a page's items 1..N, stable by existing order
// then id.
func ReindexPage(tx *gorm.DB, pageID string) error {
	var items []models.CatalogItemModel
	if err := tx.Where("page_id = ?", pageID).
		Order("`order` asc").Order("id asc").
		Find(&items).Error; err != nil {
		return err
	}
	for i, it := range items {
		want := i + 1
		if it.Order == want {
			continue
		}
		if err := tx.Model(&models.CatalogItemModel{}).
			Where("id = ?", it.ID).
			UpdateColumn("order", want).Error; err != nil {
			return err
		}
	}
	return nil
}
