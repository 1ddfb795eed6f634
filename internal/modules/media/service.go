package media

import (
	"context"
	"errors"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/modules/settings"
	"github.com/govorilka/core/internal/pkg/imaging"
	"github.com/govorilka/core/internal/pkg/pagination"
	"github.com/govorilka/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrEmptyFile = errors.New("пустой файл")

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

type Service struct {
	db        *gorm.DB
	settings  *settings.Service
	staticDir string
	logger    *zap.Logger
}

func NewService(db *gorm.DB, settingsSvc *settings.Service, staticDir string, logger *zap.Logger) *Service {
	return &Service{db: db, settings: settingsSvc, staticDir: staticDir, logger: logger}
}

// SaveUpload stores an uploaded file under the static dir, re-encodes
// images to the general preset and offloads to S3 when enabled. The
// local copy is kept either way so the site survives a bucket outage.
func (s *Service) SaveUpload(ctx context.Context, originalName string, data []byte) (*models.MediaFileModel, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	kind := "file"
	if imageExts[ext] {
		kind = "image"
	}

	name := uuid.NewString() + ext
	dir := filepath.Join(s.staticDir, "media", kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	full := filepath.Join(dir, name)
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, err
	}

	if kind == "image" {
		if err := imaging.ProcessFile(full, imaging.PresetGeneral); err != nil {
			// keep the original bytes, only the re-encode failed
			s.logger.Warn("не удалось пережать изображение", zap.String("file", name), zap.Error(err))
		}
	}

	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}

	file := models.MediaFileModel{
		Name:         name,
		OriginalName: originalName,
		Kind:         kind,
		Size:         info.Size(),
		ContentType:  contentTypeFor(ext),
		URL:          "/static/media/" + kind + "/" + name,
	}

	if uploader := s.uploader(); uploader != nil {
		key := "media/" + kind + "/" + name
		stored, readErr := os.ReadFile(full)
		if readErr == nil {
			publicURL, upErr := uploader.Upload(ctx, key, stored, file.ContentType)
			if upErr != nil {
				s.logger.Warn("офлоад в s3 не удался, файл остаётся локальным",
					zap.String("file", name), zap.Error(upErr))
			} else {
				file.URL = publicURL
				file.StorageKey = key
				file.Offloaded = true
			}
		}
	}

	if err := s.db.Create(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

// uploader builds an S3 uploader from current settings, nil when the
// offload is disabled or misconfigured.
func (s *Service) uploader() *Uploader {
	if s.settings == nil {
		return nil
	}
	cfg, err := s.settings.Get()
	if err != nil || !cfg.S3.Enable {
		return nil
	}
	uploader, err := NewUploader(cfg.S3)
	if err != nil {
		s.logger.Warn("s3 включён, но конфигурация неполная", zap.Error(err))
		return nil
	}
	return uploader
}

type ListQuery struct {
	Kind string `form:"kind"`
}

func (s *Service) List(q pagination.Query, filter ListQuery) ([]models.MediaFileModel, response.Pagination, error) {
	tx := s.db.Model(&models.MediaFileModel{}).Order("created_at DESC")
	if filter.Kind != "" {
		tx = tx.Where("kind = ?", filter.Kind)
	}

	var files []models.MediaFileModel
	pag, err := pagination.Paginate(tx, q, &files)
	return files, pag, err
}

func (s *Service) GetByID(id string) (*models.MediaFileModel, error) {
	var file models.MediaFileModel
	if err := s.db.First(&file, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

// Delete removes the DB row and the local copy. The S3 object, if any,
// is left behind: buckets are cheap and the admin may want the history.
func (s *Service) Delete(id string) error {
	file, err := s.GetByID(id)
	if err != nil || file == nil {
		return err
	}

	local := filepath.Join(s.staticDir, "media", file.Kind, file.Name)
	if rmErr := os.Remove(local); rmErr != nil && !os.IsNotExist(rmErr) {
		s.logger.Warn("не удалось удалить локальный файл", zap.String("file", file.Name), zap.Error(rmErr))
	}
	return s.db.Delete(file).Error
}

func contentTypeFor(ext string) string {
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
