package app

import (
	"context"
	"fmt"
	"time"

	"github.com/govorilka/core/internal/models"
	pkgcron "github.com/govorilka/core/internal/pkg/cron"
	"github.com/govorilka/core/internal/pkg/taskqueue"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const crmLogRetention = 30 * 24 * time.Hour

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, db *gorm.DB, deps *services, queue *taskqueue.Queue, taskSvc *taskqueue.Service, logger *zap.Logger) {
	cronLogger := logger.Named("cron")

	sched.Register(pkgcron.Job{
		Name:        "crm_retry_failed",
		Description: "Повторная отправка заявок, не дошедших до МойКласс",
		Every:       time.Hour,
		Run: func(ctx context.Context) error {
			n, err := deps.crm.RetryFailed(ctx, 50)
			if err != nil {
				cronLogger.Warn("повтор отправки в CRM не удался", zap.Error(err))
				return err
			}
			if n > 0 {
				cronLogger.Info(fmt.Sprintf("повторно отправлено заявок: %d", n))
			}
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "crm_prune_logs",
		Description: "Очистка журнала запросов к МойКласс старше 30 дней",
		Every:       24 * time.Hour,
		Run: func(ctx context.Context) error {
			n, err := deps.crm.PruneLogs(crmLogRetention)
			if err != nil {
				cronLogger.Warn("очистка журнала CRM не удалась", zap.Error(err))
				return err
			}
			cronLogger.Info(fmt.Sprintf("удалено записей журнала CRM: %d", n))
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "cleanup_sync_logs",
		Description: "Очистка журнала синхронизации Telegram старше 90 дней",
		Every:       24 * time.Hour,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().AddDate(0, 0, -90)
			result := db.Where("created_at < ?", cutoff).Delete(&models.SyncLogModel{})
			if result.Error != nil {
				cronLogger.Warn("очистка журнала синхронизации не удалась", zap.Error(result.Error))
				return result.Error
			}
			if result.RowsAffected > 0 {
				cronLogger.Info(fmt.Sprintf("удалено записей журнала синхронизации: %d", result.RowsAffected))
			}
			return nil
		},
	})

	// tasks dropped on a full worker buffer stay pending in Redis; this
	// sweep returns them to the pool
	sched.Register(pkgcron.Job{
		Name:        "tasks_redispatch",
		Description: "Возврат зависших фоновых задач в обработку",
		Every:       5 * time.Minute,
		Run: func(ctx context.Context) error {
			n, err := queue.DispatchPending(ctx, 128)
			if err != nil {
				cronLogger.Warn("не удалось вернуть отложенные задачи", zap.Error(err))
				return err
			}
			if n > 0 {
				cronLogger.Info(fmt.Sprintf("возвращено задач в обработку: %d", n))
			}
			return nil
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "cleanup_tasks",
		Description: "Удаление выполненных фоновых задач старше 7 дней",
		Every:       24 * time.Hour,
		Run: func(ctx context.Context) error {
			before := time.Now().Add(-7 * 24 * time.Hour).UnixMilli()
			return taskSvc.DeleteCompleted(ctx, before)
		},
	})

	sched.Register(pkgcron.Job{
		Name:        "settings_refresh",
		Description: "Сброс кэша настроек (подхват правок, сделанных напрямую в БД)",
		Every:       10 * time.Minute,
		Run: func(ctx context.Context) error {
			deps.settings.Invalidate()
			_, err := deps.settings.Get()
			return err
		},
	})
}
