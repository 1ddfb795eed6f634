package lead

import (
	"context"
	"errors"
	"fmt"

	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/modules/crm"
	"github.com/govorilka/core/internal/pkg/pagination"
	"github.com/govorilka/core/internal/pkg/response"
	"github.com/govorilka/core/internal/pkg/secret"
	"github.com/govorilka/core/internal/pkg/taskqueue"
	"github.com/govorilka/core/internal/pkg/tgnotify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Background task types emitted on lead capture.
const (
	TaskPushLead = "crm.push_lead"
)

// Enqueuer is the slice of the task queue the lead service needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload interface{}, dedupKey string) (*taskqueue.Task, error)
}

type CreateLeadDTO struct {
	Name    string                 `json:"name"    binding:"required"`
	Phone   string                 `json:"phone"   binding:"required"`
	Email   string                 `json:"email"`
	Comment string                 `json:"comment"`
	Source  string                 `json:"source"`
	FormID  *string                `json:"form_id"`
	QuizID  *string                `json:"quiz_id"`
	Extra   map[string]interface{} `json:"extra"`
}

type ListQuery struct {
	Source    string `form:"source"`
	PushState string `form:"push_state"`
	Phone     string `form:"phone"`
}

// leadResponse carries the decrypted comment; the model itself never
// serializes it.
type leadResponse struct {
	models.LeadModel
	Comment string `json:"comment"`
}

// Service owns lead capture and the admin view over captured leads. The
// comment field is encrypted before it touches the database.
type Service struct {
	db       *gorm.DB
	codec    *secret.Codec
	queue    Enqueuer
	notifier *tgnotify.Service
	logger   *zap.Logger
}

func NewService(db *gorm.DB, codec *secret.Codec, queue Enqueuer, notifier *tgnotify.Service, logger *zap.Logger) *Service {
	return &Service{db: db, codec: codec, queue: queue, notifier: notifier, logger: logger}
}

// Create captures a lead, schedules the CRM push and pings the operator
// chat. Queue and notification failures never fail the capture.
func (s *Service) Create(ctx context.Context, dto *CreateLeadDTO) (*models.LeadModel, error) {
	if _, err := crm.NormalizePhone(dto.Phone); err != nil {
		return nil, fmt.Errorf("%w: %q", err, dto.Phone)
	}

	encComment, err := s.codec.Encrypt(dto.Comment)
	if err != nil {
		return nil, err
	}

	source := dto.Source
	if source == "" {
		source = models.LeadSourceManual
	}

	lead := models.LeadModel{
		Name:         dto.Name,
		Phone:        dto.Phone,
		Email:        dto.Email,
		Source:       source,
		Comment:      encComment,
		FormID:       dto.FormID,
		QuizID:       dto.QuizID,
		Extra:        dto.Extra,
		CRMPushState: models.CRMPushPending,
	}
	if err := s.db.Create(&lead).Error; err != nil {
		return nil, err
	}

	if s.queue != nil {
		payload := map[string]string{"lead_id": lead.ID}
		if _, err := s.queue.Enqueue(ctx, TaskPushLead, payload, "crm:push:"+lead.ID); err != nil {
			s.logger.Warn("не удалось поставить задачу отправки в CRM",
				zap.String("lead_id", lead.ID), zap.Error(err))
		}
	}

	if s.notifier != nil {
		body := fmt.Sprintf("%s\n%s", lead.Name, lead.Phone)
		if err := s.notifier.Push("Новая заявка", body); err != nil {
			s.logger.Warn("уведомление о заявке не отправлено", zap.Error(err))
		}
	}

	return &lead, nil
}

func (s *Service) List(q pagination.Query, lq ListQuery) ([]models.LeadModel, response.Pagination, error) {
	tx := s.db.Model(&models.LeadModel{}).Order("created_at DESC")
	if lq.Source != "" {
		tx = tx.Where("source = ?", lq.Source)
	}
	if lq.PushState != "" {
		tx = tx.Where("crm_push_state = ?", lq.PushState)
	}
	if lq.Phone != "" {
		tx = tx.Where("phone LIKE ?", "%"+lq.Phone+"%")
	}

	var leads []models.LeadModel
	pag, err := pagination.Paginate(tx, q, &leads)
	return leads, pag, err
}

// GetByID returns the lead with its comment decrypted.
func (s *Service) GetByID(id string) (*leadResponse, error) {
	var lead models.LeadModel
	if err := s.db.First(&lead, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	comment, err := s.codec.Decrypt(lead.Comment)
	if err != nil {
		if errors.Is(err, secret.ErrDecrypt) {
			// key mismatch: surface the lead, flag the comment
			s.logger.Error("комментарий заявки не расшифровался", zap.String("lead_id", id))
			comment = ""
		} else {
			return nil, err
		}
	}
	return &leadResponse{LeadModel: lead, Comment: comment}, nil
}

func (s *Service) Delete(id string) error {
	return s.db.Delete(&models.LeadModel{}, "id = ?", id).Error
}
