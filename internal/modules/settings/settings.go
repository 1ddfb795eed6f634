package settings

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/govorilka/core/internal/config"
	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/pkg/response"
	"github.com/govorilka/core/internal/pkg/secret"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const settingsKey = "settings"

// Service manages the persisted SiteSettings document. The S3 secret key
// is encrypted at rest; everything else is stored as plain JSON.
type Service struct {
	db    *gorm.DB
	codec *secret.Codec

	mu  sync.RWMutex
	cur *config.SiteSettings
}

func NewService(db *gorm.DB, codec *secret.Codec) *Service {
	return &Service{db: db, codec: codec}
}

// Get returns the current settings, loading from DB if not cached.
func (s *Service) Get() (*config.SiteSettings, error) {
	s.mu.RLock()
	if s.cur != nil {
		defer s.mu.RUnlock()
		return s.cur, nil
	}
	s.mu.RUnlock()

	return s.load()
}

func (s *Service) load() (*config.SiteSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var opt models.OptionModel
	err := s.db.Where("name = ?", settingsKey).First(&opt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		defaults := config.DefaultSiteSettings()
		s.cur = &defaults
		_ = s.persist(&defaults)
		return s.cur, nil
	}
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultSiteSettings()
	if err := json.Unmarshal([]byte(opt.Value), &cfg); err != nil {
		return nil, err
	}
	if cfg.S3.SecretAccessKey != "" {
		plain, err := s.codec.Decrypt(cfg.S3.SecretAccessKey)
		if err != nil {
			return nil, err
		}
		cfg.S3.SecretAccessKey = plain
	}
	s.cur = &cfg
	return s.cur, nil
}

// Patch merges the given partial JSON update into the current settings and
// persists the result.
func (s *Service) Patch(partial map[string]json.RawMessage) (*config.SiteSettings, error) {
	current, err := s.Get()
	if err != nil {
		return nil, err
	}

	currentJSON, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	merged := map[string]interface{}{}
	if err := json.Unmarshal(currentJSON, &merged); err != nil {
		return nil, err
	}

	for k, v := range partial {
		var incoming interface{}
		if err := json.Unmarshal(v, &incoming); err != nil {
			return nil, err
		}
		if existing, ok := merged[k]; ok {
			merged[k] = deepMerge(existing, incoming)
			continue
		}
		merged[k] = incoming
	}

	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	updated := config.DefaultSiteSettings()
	if err := json.Unmarshal(mergedJSON, &updated); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cur = &updated
	s.mu.Unlock()

	return &updated, s.persist(&updated)
}

func deepMerge(oldVal, newVal interface{}) interface{} {
	oldMap, oldIsMap := oldVal.(map[string]interface{})
	newMap, newIsMap := newVal.(map[string]interface{})
	if oldIsMap && newIsMap {
		out := make(map[string]interface{}, len(oldMap))
		for k, v := range oldMap {
			out[k] = v
		}
		for k, v := range newMap {
			if existing, ok := out[k]; ok {
				out[k] = deepMerge(existing, v)
				continue
			}
			out[k] = v
		}
		return out
	}
	return newVal
}

func (s *Service) persist(cfg *config.SiteSettings) error {
	stored := *cfg
	if stored.S3.SecretAccessKey != "" {
		enc, err := s.codec.Encrypt(stored.S3.SecretAccessKey)
		if err != nil {
			return err
		}
		stored.S3.SecretAccessKey = enc
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	opt := models.OptionModel{Name: settingsKey, Value: string(data)}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&opt).Error
}

// Invalidate clears the cache, forcing a DB reload on next Get.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = nil
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/settings")

	g.GET("/public", h.getPublic)

	a := g.Group("", authMW)
	a.GET("", h.getAll)
	a.PATCH("", h.patch)
}

// getPublic returns the site card shown in the storefront footer.
func (h *Handler) getPublic(c *gin.Context) {
	cfg, err := h.svc.Get()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, cfg.Site)
}

// getAll returns the full settings document (admin only).
func (h *Handler) getAll(c *gin.Context) {
	cfg, err := h.svc.Get()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, cfg)
}

// patch merges a partial settings update.
func (h *Handler) patch(c *gin.Context) {
	var partial map[string]json.RawMessage
	if err := c.ShouldBindJSON(&partial); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	updated, err := h.svc.Patch(partial)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, updated)
}
