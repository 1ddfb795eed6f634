package app

import (
	"context"
	"encoding/json"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/govorilka/core/internal/modules/auth"
	"github.com/govorilka/core/internal/modules/booking"
	"github.com/govorilka/core/internal/modules/catalog"
	"github.com/govorilka/core/internal/modules/crm"
	"github.com/govorilka/core/internal/modules/lead"
	"github.com/govorilka/core/internal/modules/mapping"
	"github.com/govorilka/core/internal/modules/media"
	"github.com/govorilka/core/internal/modules/page"
	"github.com/govorilka/core/internal/modules/quiz"
	"github.com/govorilka/core/internal/modules/settings"
	"github.com/govorilka/core/internal/modules/telegram"
	"github.com/govorilka/core/internal/pkg/secret"
	"github.com/govorilka/core/internal/pkg/taskqueue"
	"github.com/govorilka/core/internal/pkg/tgnotify"
	"go.uber.org/zap"
)

// services bundles the wired module services shared by routes and cron.
type services struct {
	settings *settings.Service
	auth     *auth.Service
	pages    *page.Service
	catalog  *catalog.Service
	mappings *mapping.Service
	booking  *booking.Service
	quiz     *quiz.Service
	leads    *lead.Service
	crm      *crm.Service
	media    *media.Service
	telegram *telegram.Service
	notifier *tgnotify.Service
}

func (a *App) buildServices(bot *tgbotapi.BotAPI, codec *secret.Codec) *services {
	cfg := a.cfg
	db := a.db
	logger := a.logger

	settingsSvc := settings.NewService(db, codec)

	notifier := tgnotify.New(bot, func() (int64, string, bool) {
		s, err := settingsSvc.Get()
		if err != nil {
			return 0, "", false
		}
		chatID := s.Telegram.NotifyChatID
		if chatID == 0 {
			chatID = cfg.Telegram.NotifyChatID
		}
		return chatID, s.Site.Title, chatID != 0
	})

	leadSvc := lead.NewService(db, codec, a.queue, notifier, logger)

	crmClient := crm.NewClient(db, logger, cfg.MoyKlass.BaseURL, cfg.MoyKlass.APIKey)
	crmSvc := crm.NewService(db, crmClient, settingsSvc, codec, logger)

	// The queue hands every captured lead to the CRM push. A disabled
	// integration completes the task and leaves the lead pending; it will
	// be picked up by a manual push once the operator turns the CRM on.
	a.queue.Handle(lead.TaskPushLead, func(ctx context.Context, task *taskqueue.Task) error {
		var payload struct {
			LeadID string `json:"lead_id"`
		}
		if err := json.Unmarshal(task.Payload, &payload); err != nil || payload.LeadID == "" {
			logger.Warn("задача отправки в CRM без lead_id", zap.String("task_id", task.ID))
			return nil
		}
		if err := crmSvc.PushLead(ctx, payload.LeadID); err != nil {
			if errors.Is(err, crm.ErrDisabled) {
				return nil
			}
			return err
		}
		return nil
	})

	fetcher := telegram.NewBotMediaFetcher(bot, logger)
	tgSvc := telegram.NewService(db, logger, fetcher, cfg.StaticDir(), cfg.Telegram)
	tgSvc.SetEnabledFunc(func() bool {
		s, err := settingsSvc.Get()
		return err == nil && s.Telegram.SyncEnabled
	})

	return &services{
		settings: settingsSvc,
		auth:     auth.NewService(db, logger),
		pages:    page.NewService(db),
		catalog:  catalog.NewService(db),
		mappings: mapping.NewService(db),
		booking:  booking.NewService(db, leadSvc),
		quiz:     quiz.NewService(db, leadSvc, logger),
		leads:    leadSvc,
		crm:      crmSvc,
		media:    media.NewService(db, settingsSvc, cfg.StaticDir(), logger),
		telegram: tgSvc,
		notifier: notifier,
	}
}
