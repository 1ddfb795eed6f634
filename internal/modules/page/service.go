package page

import (
	"errors"
	"fmt"

	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/pkg/pagination"
	"github.com/govorilka/core/internal/pkg/response"
	"github.com/govorilka/core/internal/pkg/slug"
	"gorm.io/gorm"
)

var ErrSlugTaken = errors.New("страница с таким slug уже существует")

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) List(q pagination.Query, activeOnly bool) ([]models.PageModel, response.Pagination, error) {
	tx := s.db.Model(&models.PageModel{}).Order("`order` ASC, created_at ASC")
	if activeOnly {
		tx = tx.Where("active = ?", true)
	}

	var pages []models.PageModel
	pag, err := pagination.Paginate(tx, q, &pages)
	return pages, pag, err
}

func (s *Service) GetByID(id string) (*models.PageModel, error) {
	var page models.PageModel
	if err := s.db.First(&page, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &page, nil
}

func (s *Service) GetBySlug(slug string, activeOnly bool) (*models.PageModel, error) {
	tx := s.db.Where("slug = ?", slug)
	if activeOnly {
		tx = tx.Where("active = ?", true)
	}
	var page models.PageModel
	if err := tx.First(&page).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &page, nil
}

func (s *Service) Create(dto *CreatePageDTO) (*models.PageModel, error) {
	page := models.PageModel{
		Title:  dto.Title,
		Slug:   dto.Slug,
		Text:   dto.Text,
		Active: true,
	}
	if page.Slug == "" {
		page.Slug = slug.Make(dto.Title)
	}
	if dto.Order != nil {
		page.Order = *dto.Order
	}
	if dto.Active != nil {
		page.Active = *dto.Active
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		tx.Model(&models.PageModel{}).Where("slug = ?", page.Slug).Count(&count)
		if count > 0 {
			return ErrSlugTaken
		}
		if page.Order == 0 {
			var maxOrder int
			tx.Model(&models.PageModel{}).Select("COALESCE(MAX(`order`), 0)").Scan(&maxOrder)
			page.Order = maxOrder + 1
		}
		return tx.Create(&page).Error
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *Service) Update(id string, dto *UpdatePageDTO) (*models.PageModel, error) {
	page, err := s.GetByID(id)
	if err != nil || page == nil {
		return page, err
	}

	updates := map[string]interface{}{}
	if dto.Title != nil {
		updates["title"] = *dto.Title
	}
	if dto.Slug != nil && *dto.Slug != page.Slug {
		var count int64
		s.db.Model(&models.PageModel{}).Where("slug = ? AND id <> ?", *dto.Slug, id).Count(&count)
		if count > 0 {
			return nil, ErrSlugTaken
		}
		updates["slug"] = *dto.Slug
	}
	if dto.Text != nil {
		updates["text"] = *dto.Text
	}
	if dto.Order != nil {
		updates["order"] = *dto.Order
	}
	if dto.Active != nil {
		updates["active"] = *dto.Active
	}

	if len(updates) == 0 {
		return page, nil
	}
	if err := s.db.Model(page).Updates(updates).Error; err != nil {
		return nil, err
	}
	return page, nil
}

// Delete removes the page. Pages still referenced by catalog items or
// hashtag mappings are protected: removing one would orphan synced content.
func (s *Service) Delete(id string) error {
	var items int64
	s.db.Model(&models.CatalogItemModel{}).Where("page_id = ?", id).Count(&items)
	if items > 0 {
		return fmt.Errorf("на странице осталось позиций каталога: %d", items)
	}
	var mappings int64
	s.db.Model(&models.HashtagMappingModel{}).Where("page_id = ?", id).Count(&mappings)
	if mappings > 0 {
		return fmt.Errorf("на страницу ссылаются маппинги хэштегов: %d", mappings)
	}
	return s.db.Delete(&models.PageModel{}, "id = ?", id).Error
}
