package mapping

import (
	"errors"
	"fmt"
	"strings"

	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/pkg/pagination"
	"github.com/govorilka/core/internal/pkg/response"
	"gorm.io/gorm"
)

var (
	ErrHashtagTaken   = errors.New("маппинг для этого хэштега уже существует")
	ErrPageNotFound   = errors.New("страница не найдена")
	ErrInvalidHashtag = errors.New("хэштег не может быть пустым")
)

// Valid image placement values.
var validPlacements = map[string]bool{
	models.ImagePlacementCard: true,
	models.ImagePlacementPage: true,
	models.ImagePlacementBoth: true,
	models.ImagePlacementNone: true,
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// normalizeHashtag strips the leading '#' and lower-cases: mappings are
// matched case-insensitively against post hashtags.
func normalizeHashtag(raw string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), "#"))
}

func (s *Service) List(q pagination.Query) ([]models.HashtagMappingModel, response.Pagination, error) {
	tx := s.db.Model(&models.HashtagMappingModel{}).Order("hashtag ASC")

	var mappings []models.HashtagMappingModel
	pag, err := pagination.Paginate(tx, q, &mappings)
	return mappings, pag, err
}

func (s *Service) GetByID(id string) (*models.HashtagMappingModel, error) {
	var m models.HashtagMappingModel
	if err := s.db.First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (s *Service) Create(dto *CreateMappingDTO) (*models.HashtagMappingModel, error) {
	hashtag := normalizeHashtag(dto.Hashtag)
	if hashtag == "" {
		return nil, ErrInvalidHashtag
	}

	var pages int64
	s.db.Model(&models.PageModel{}).Where("id = ?", dto.PageID).Count(&pages)
	if pages == 0 {
		return nil, ErrPageNotFound
	}

	var count int64
	s.db.Model(&models.HashtagMappingModel{}).Where("hashtag = ?", hashtag).Count(&count)
	if count > 0 {
		return nil, ErrHashtagTaken
	}

	m := models.HashtagMappingModel{
		Hashtag:        hashtag,
		PageID:         dto.PageID,
		Width:          dto.Width,
		HasOwnPage:     true,
		ButtonType:     dto.ButtonType,
		ButtonTarget:   dto.ButtonTarget,
		Separator:      "---",
		PreviewLength:  150,
		ImagePlacement: models.ImagePlacementCard,
		ImageWidth:     dto.ImageWidth,
		ImageHeight:    dto.ImageHeight,
		Active:         true,
	}
	if m.Width == "" {
		m.Width = models.CatalogWidthFull
	}
	if m.ButtonType == "" {
		m.ButtonType = models.ButtonTypeNone
	}
	if dto.HasOwnPage != nil {
		m.HasOwnPage = *dto.HasOwnPage
	}
	if dto.Separator != nil {
		m.Separator = *dto.Separator
	}
	if dto.PreviewLength != nil {
		m.PreviewLength = *dto.PreviewLength
	}
	if dto.ImagePlacement != "" {
		if !validPlacements[dto.ImagePlacement] {
			return nil, fmt.Errorf("неизвестное размещение картинки: %s", dto.ImagePlacement)
		}
		m.ImagePlacement = dto.ImagePlacement
	}
	if dto.Active != nil {
		m.Active = *dto.Active
	}
	if dto.Order != nil {
		m.Order = *dto.Order
	}

	if err := s.db.Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) Update(id string, dto *UpdateMappingDTO) (*models.HashtagMappingModel, error) {
	m, err := s.GetByID(id)
	if err != nil || m == nil {
		return m, err
	}

	updates := map[string]interface{}{}
	if dto.Hashtag != nil {
		hashtag := normalizeHashtag(*dto.Hashtag)
		if hashtag == "" {
			return nil, ErrInvalidHashtag
		}
		if hashtag != m.Hashtag {
			var count int64
			s.db.Model(&models.HashtagMappingModel{}).Where("hashtag = ? AND id <> ?", hashtag, id).Count(&count)
			if count > 0 {
				return nil, ErrHashtagTaken
			}
			updates["hashtag"] = hashtag
		}
	}
	if dto.PageID != nil && *dto.PageID != m.PageID {
		var pages int64
		s.db.Model(&models.PageModel{}).Where("id = ?", *dto.PageID).Count(&pages)
		if pages == 0 {
			return nil, ErrPageNotFound
		}
		updates["page_id"] = *dto.PageID
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
	if dto.Separator != nil {
		updates["separator"] = *dto.Separator
	}
	if dto.PreviewLength != nil {
		updates["preview_length"] = *dto.PreviewLength
	}
	if dto.ImagePlacement != nil {
		if !validPlacements[*dto.ImagePlacement] {
			return nil, fmt.Errorf("неизвестное размещение картинки: %s", *dto.ImagePlacement)
		}
		updates["image_placement"] = *dto.ImagePlacement
	}
	if dto.ImageWidth != nil {
		updates["image_width"] = *dto.ImageWidth
	}
	if dto.ImageHeight != nil {
		updates["image_height"] = *dto.ImageHeight
	}
	if dto.Active != nil {
		updates["active"] = *dto.Active
	}
	if dto.Order != nil {
		updates["order"] = *dto.Order
	}

	if len(updates) == 0 {
		return m, nil
	}
	if err := s.db.Model(m).Updates(updates).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// Delete removes the mapping. Items already synced through it stay as they
// are; future posts with the hashtag simply stop matching.
func (s *Service) Delete(id string) error {
	return s.db.Delete(&models.HashtagMappingModel{}, "id = ?", id).Error
}
