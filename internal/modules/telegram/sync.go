package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/govorilka/core/internal/config"
	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/modules/catalog"
	"github.com/govorilka/core/internal/pkg/imaging"
	"github.com/govorilka/core/internal/pkg/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the channel sync engine: it turns hashtag-tagged channel
// posts into catalog items and keeps them in step with edits and
// deletions. All failures are absorbed and recorded in the sync log; the
// webhook is always acknowledged.
type Service struct {
	db        *gorm.DB
	logger    *zap.Logger
	fetcher   MediaFetcher
	staticDir string

	channelID       int64
	channelUsername string

	// enabled is consulted per update; nil means always on.
	enabled func() bool
}

func NewService(db *gorm.DB, logger *zap.Logger, fetcher MediaFetcher, staticDir string, cfg config.TelegramConfig) *Service {
	return &Service{
		db:              db,
		logger:          logger,
		fetcher:         fetcher,
		staticDir:       staticDir,
		channelID:       cfg.ChannelID,
		channelUsername: strings.TrimPrefix(cfg.ChannelUsername, "@"),
	}
}

// SetEnabledFunc installs a runtime on/off switch for the sync engine.
func (s *Service) SetEnabledFunc(fn func() bool) { s.enabled = fn }

// HandleUpdate classifies one inbound update and routes it. It never
// returns an error: whatever happens inside is logged so the webhook can
// ack and the platform does not redeliver.
func (s *Service) HandleUpdate(ctx context.Context, upd *Update, raw map[string]interface{}) {
	switch {
	case upd.ChannelPost != nil:
		s.handleChannelPost(ctx, upd.ChannelPost, false, raw)
	case upd.EditedChannelPost != nil:
		s.handleChannelPost(ctx, upd.EditedChannelPost, true, raw)
	case upd.DeletedChannelPost != nil:
		s.handleDeleted(ctx, upd.DeletedChannelPost, raw)
	case upd.CallbackQuery != nil:
		s.logEvent(models.SyncEventSkipped, models.SyncStatusSkipped, callbackMessageID(upd.CallbackQuery), 0, "", nil,
			"callback query не обрабатывается синхронизацией", "", raw)
	case upd.Message != nil:
		s.logEvent(models.SyncEventSkipped, models.SyncStatusSkipped, upd.Message.MessageID, upd.Message.Chat.ID, "", nil,
			"личное сообщение, не пост канала", "", raw)
	default:
		s.logEvent(models.SyncEventWarning, models.SyncStatusSkipped, 0, 0, "", nil,
			"неизвестная форма update, проигнорирована", "", raw)
	}
}

func callbackMessageID(cb *CallbackQuery) int64 {
	if cb.Message != nil {
		return cb.Message.MessageID
	}
	return 0
}

func (s *Service) handleChannelPost(ctx context.Context, msg *Message, edited bool, raw map[string]interface{}) {
	if s.enabled != nil && !s.enabled() {
		s.logEvent(models.SyncEventSkipped, models.SyncStatusSkipped, msg.MessageID, msg.Chat.ID, "", nil,
			"синхронизация выключена в настройках", "", raw)
		return
	}

	if !s.chatMatches(msg.Chat) {
		s.logEvent(models.SyncEventSkipped, models.SyncStatusSkipped, msg.MessageID, msg.Chat.ID, "", nil,
			fmt.Sprintf("пост из чужого канала %d (@%s)", msg.Chat.ID, msg.Chat.Username), "", raw)
		return
	}

	event := models.SyncEventPost
	if edited {
		event = models.SyncEventEdited
	}

	text := msg.Content()
	tags := ExtractHashtags(text)
	tagList := strings.Join(tags, ",")
	s.logEvent(event, models.SyncStatusOK, msg.MessageID, msg.Chat.ID, tagList, nil, "", "", raw)

	mapping, err := s.resolveMapping(tags)
	if err != nil {
		s.logEvent(models.SyncEventError, models.SyncStatusError, msg.MessageID, msg.Chat.ID, tagList, nil,
			"ошибка поиска маппинга", err.Error(), raw)
		return
	}

	if mapping == nil {
		// an edited post that lost its hashtag deactivates the item
		if item := s.findByMessageID(msg.MessageID); item != nil {
			s.deactivate(item, msg, tagList, raw)
			return
		}
		s.logEvent(models.SyncEventSkipped, models.SyncStatusSkipped, msg.MessageID, msg.Chat.ID, tagList, nil,
			"нет активного маппинга по хэштегам", "", raw)
		return
	}

	split := SplitText(StripHashtags(text), mapping.Separator, mapping.PreviewLength)

	var image *FetchedImage
	if s.fetcher != nil && mapping.ImagePlacement != models.ImagePlacementNone {
		image, err = s.fetcher.FetchLargestPhoto(ctx, msg.Photo)
		if err != nil {
			// soft failure, proceed without the image
			s.logEvent(models.SyncEventWarning, models.SyncStatusOK, msg.MessageID, msg.Chat.ID, tagList, nil,
				"картинка не скачалась, пост сохранён без неё", err.Error(), raw)
			image = nil
		}
	}

	item, created, err := s.upsertItem(msg, mapping, split, image)
	if err != nil {
		s.logEvent(models.SyncEventError, models.SyncStatusError, msg.MessageID, msg.Chat.ID, tagList, nil,
			"ошибка сохранения позиции каталога", err.Error(), raw)
		return
	}

	if created {
		s.logEvent(models.SyncEventCreated, models.SyncStatusOK, msg.MessageID, msg.Chat.ID, tagList, &item.ID,
			fmt.Sprintf("создана позиция %q (%s)", item.Title, item.Slug), "", raw)
	} else {
		s.logEvent(models.SyncEventUpdated, models.SyncStatusOK, msg.MessageID, msg.Chat.ID, tagList, &item.ID,
			fmt.Sprintf("обновлена позиция %q", item.Title), "", raw)
	}
}

func (s *Service) handleDeleted(ctx context.Context, msg *Message, raw map[string]interface{}) {
	item := s.findByMessageID(msg.MessageID)
	if item == nil {
		s.logEvent(models.SyncEventSkipped, models.SyncStatusSkipped, msg.MessageID, msg.Chat.ID, "", nil,
			"удалённый пост не привязан к каталогу", "", raw)
		return
	}
	s.deactivate(item, msg, "", raw)
}

// deactivate flips the active flag off. Repeated deactivation is a no-op
// recorded as skipped.
func (s *Service) deactivate(item *models.CatalogItemModel, msg *Message, tagList string, raw map[string]interface{}) {
	if !item.Active {
		s.logEvent(models.SyncEventSkipped, models.SyncStatusSkipped, msg.MessageID, msg.Chat.ID, tagList, &item.ID,
			"позиция уже деактивирована", "", raw)
		return
	}
	if err := s.db.Model(item).UpdateColumn("active", false).Error; err != nil {
		s.logEvent(models.SyncEventError, models.SyncStatusError, msg.MessageID, msg.Chat.ID, tagList, &item.ID,
			"не удалось деактивировать позицию", err.Error(), raw)
		return
	}
	item.Active = false
	s.logEvent(models.SyncEventDeactivated, models.SyncStatusOK, msg.MessageID, msg.Chat.ID, tagList, &item.ID,
		fmt.Sprintf("позиция %q деактивирована", item.Title), "", raw)
}

func (s *Service) chatMatches(chat Chat) bool {
	if s.channelID != 0 && chat.ID == s.channelID {
		return true
	}
	if s.channelUsername != "" && strings.EqualFold(strings.TrimPrefix(chat.Username, "@"), s.channelUsername) {
		return true
	}
	return false
}

// resolveMapping returns the first active mapping matching the tags in
// post order. One post, one destination page.
func (s *Service) resolveMapping(tags []string) (*models.HashtagMappingModel, error) {
	for _, tag := range tags {
		var mapping models.HashtagMappingModel
		err := s.db.Where("LOWER(hashtag) = ? AND active = ?", strings.ToLower(tag), true).First(&mapping).Error
		if err == nil {
			return &mapping, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}
	return nil, nil
}

func (s *Service) findByMessageID(messageID int64) *models.CatalogItemModel {
	var item models.CatalogItemModel
	if err := s.db.Where("tg_message_id = ?", messageID).First(&item).Error; err != nil {
		return nil
	}
	return &item
}

// upsertItem creates or updates the catalog item keyed by the source
// message id. Identity (message reference, slug) is preserved on update.
func (s *Service) upsertItem(msg *Message, mapping *models.HashtagMappingModel, split SplitResult, image *FetchedImage) (*models.CatalogItemModel, bool, error) {
	existing := s.findByMessageID(msg.MessageID)

	cardImage, pageImage, err := s.storeImages(msg.MessageID, mapping, image)
	if err != nil {
		// soft failure: keep whatever paths did land
		s.logger.Warn("обработка картинок завершилась с ошибкой", zap.Int64("message_id", msg.MessageID), zap.Error(err))
	}

	if existing == nil {
		item := &models.CatalogItemModel{
			Title:        split.Title,
			CardText:     split.CardText,
			Text:         split.FullText,
			Width:        mapping.Width,
			HasOwnPage:   mapping.HasOwnPage,
			ButtonType:   mapping.ButtonType,
			ButtonTarget: mapping.ButtonTarget,
			PageID:       mapping.PageID,
			Active:       true,
		}
		msgID := msg.MessageID
		item.TGMessageID = &msgID
		item.CardImage = cardImage
		item.PageImage = pageImage

		err := s.db.Transaction(func(tx *gorm.DB) error {
			item.Slug = s.uniqueSlug(tx, slug.Make(split.Title))
			if mapping.Order > 0 {
				// anchor at the mapping's position, displacing items at/after it
				if err := tx.Model(&models.CatalogItemModel{}).
					Where("page_id = ? AND `order` >= ?", mapping.PageID, mapping.Order).
					UpdateColumn("order", gorm.Expr("`order` + 1")).Error; err != nil {
					return err
				}
				item.Order = mapping.Order
			} else {
				var maxOrder int
				tx.Model(&models.CatalogItemModel{}).
					Where("page_id = ?", mapping.PageID).
					Select("COALESCE(MAX(`order`), 0)").Scan(&maxOrder)
				item.Order = maxOrder + 1
			}
			if err := tx.Create(item).Error; err != nil {
				return err
			}
			return catalog.ReindexPage(tx, mapping.PageID)
		})
		if err != nil {
			return nil, false, err
		}
		return item, true, nil
	}

	updates := map[string]interface{}{
		"title":         split.Title,
		"card_text":     split.CardText,
		"text":          split.FullText,
		"width":         mapping.Width,
		"has_own_page":  mapping.HasOwnPage,
		"button_type":   mapping.ButtonType,
		"button_target": mapping.ButtonTarget,
		"page_id":       mapping.PageID,
		"active":        true,
	}
	if cardImage != "" {
		updates["card_image"] = cardImage
	}
	if pageImage != "" {
		updates["page_image"] = pageImage
	}
	if err := s.db.Model(existing).Updates(updates).Error; err != nil {
		return nil, false, err
	}
	existing.Title = split.Title
	existing.Active = true
	return existing, false, nil
}

// uniqueSlug appends incrementing numeric suffixes until the slug is free.
func (s *Service) uniqueSlug(tx *gorm.DB, base string) string {
	slug := base
	for i := 1; ; i++ {
		var count int64
		tx.Model(&models.CatalogItemModel{}).Where("slug = ?", slug).Count(&count)
		if count == 0 {
			return slug
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

// storeImages writes the fetched photo under the static dir for each
// placement role and re-encodes it to the role's preset. Re-encode errors
// are soft: the original file is kept.
func (s *Service) storeImages(messageID int64, mapping *models.HashtagMappingModel, image *FetchedImage) (cardImage, pageImage string, err error) {
	if image == nil || len(image.Data) == 0 {
		return "", "", nil
	}

	placement := mapping.ImagePlacement
	wantCard := placement == models.ImagePlacementCard || placement == models.ImagePlacementBoth
	wantPage := placement == models.ImagePlacementPage || placement == models.ImagePlacementBoth

	dir := filepath.Join(s.staticDir, "media", "tg")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}

	var firstErr error
	if wantCard {
		name := fmt.Sprintf("card_%d_%s", messageID, image.Filename)
		full := filepath.Join(dir, name)
		if err := os.WriteFile(full, image.Data, 0o644); err != nil {
			firstErr = err
		} else {
			if err := imaging.ProcessFile(full, imaging.PresetThumbnail); err != nil && firstErr == nil {
				firstErr = err
			}
			cardImage = "/static/media/tg/" + name
		}
	}
	if wantPage {
		name := fmt.Sprintf("page_%d_%s", messageID, image.Filename)
		full := filepath.Join(dir, name)
		if err := os.WriteFile(full, image.Data, 0o644); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			if mapping.ImageWidth > 0 || mapping.ImageHeight > 0 {
				err = imaging.ProcessFileTo(full, mapping.ImageWidth, mapping.ImageHeight)
			} else {
				err = imaging.ProcessFile(full, imaging.PresetGeneral)
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
			pageImage = "/static/media/tg/" + name
		}
	}
	return cardImage, pageImage, firstErr
}

func (s *Service) logEvent(event, status string, messageID, chatID int64, hashtags string, itemID *string, message, errDetail string, raw map[string]interface{}) {
	entry := models.SyncLogModel{
		Event:         event,
		Status:        status,
		MessageID:     messageID,
		ChatID:        chatID,
		Hashtags:      hashtags,
		CatalogItemID: itemID,
		Message:       message,
		ErrorDetail:   errDetail,
		RawPayload:    raw,
		Timestamp:     time.Now(),
	}
	if err := s.db.Create(&entry).Error; err != nil {
		s.logger.Error("не удалось записать sync log", zap.Error(err))
	}
}
