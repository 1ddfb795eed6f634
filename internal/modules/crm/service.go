package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/govorilka/core/internal/config"
	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/modules/settings"
	"github.com/govorilka/core/internal/pkg/pagination"
	"github.com/govorilka/core/internal/pkg/response"
	"github.com/govorilka/core/internal/pkg/secret"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrDisabled     = errors.New("интеграция с MoyKlass выключена в настройках")
	ErrLeadNotFound = errors.New("заявка не найдена")
)

// Service pushes captured leads into MoyKlass as clients.
type Service struct {
	db       *gorm.DB
	client   *Client
	settings *settings.Service
	codec    *secret.Codec
	logger   *zap.Logger
}

func NewService(db *gorm.DB, client *Client, settingsSvc *settings.Service, codec *secret.Codec, logger *zap.Logger) *Service {
	return &Service{db: db, client: client, settings: settingsSvc, codec: codec, logger: logger}
}

type userAttribute struct {
	AttributeID int64       `json:"attributeId"`
	Value       interface{} `json:"value"`
}

// createUserRequest is the MoyKlass POST /v1/company/users payload.
type createUserRequest struct {
	Name          string          `json:"name"`
	Phone         string          `json:"phone"`
	Email         string          `json:"email,omitempty"`
	Note          string          `json:"note,omitempty"`
	Filials       []int64         `json:"filials,omitempty"`
	Responsibles  []int64         `json:"responsibles,omitempty"`
	ClientStateID int64           `json:"clientStateId,omitempty"`
	Tags          []int64         `json:"tags,omitempty"`
	Attributes    []userAttribute `json:"attributes,omitempty"`
}

type createUserResponse struct {
	ID int64 `json:"id"`
}

// PushLead sends one lead to the CRM and records the outcome on the lead
// row. ErrDisabled is returned without touching the lead when the
// integration is off.
func (s *Service) PushLead(ctx context.Context, leadID string) error {
	cfg, err := s.settings.Get()
	if err != nil {
		return err
	}
	if !cfg.CRM.Enable || !s.client.Configured() {
		return ErrDisabled
	}

	var lead models.LeadModel
	if err := s.db.First(&lead, "id = ?", leadID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLeadNotFound
		}
		return err
	}
	if lead.CRMPushState == models.CRMPushSent {
		return nil
	}

	payload, err := s.buildUserPayload(&lead, cfg.CRM)
	if err != nil {
		s.markFailed(&lead, err)
		return err
	}

	var created createUserResponse
	if err := s.client.Do(ctx, http.MethodPost, "/v1/company/users", payload, &created); err != nil {
		s.markFailed(&lead, err)
		return err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"crm_push_state": models.CRMPushSent,
		"crm_user_id":    created.ID,
		"crm_pushed_at":  now,
		"crm_push_error": "",
	}
	if err := s.db.Model(&lead).Updates(updates).Error; err != nil {
		return err
	}
	s.logger.Info("заявка отправлена в MoyKlass",
		zap.String("lead_id", lead.ID), zap.Int64("crm_user_id", created.ID))
	return nil
}

func (s *Service) markFailed(lead *models.LeadModel, cause error) {
	_ = s.db.Model(lead).Updates(map[string]interface{}{
		"crm_push_state": models.CRMPushFailed,
		"crm_push_error": cause.Error(),
	}).Error
}

// buildUserPayload assembles the CRM payload from the lead and the active
// field mappings.
func (s *Service) buildUserPayload(lead *models.LeadModel, opts config.CRMOptions) (*createUserRequest, error) {
	phone, err := NormalizePhone(lead.Phone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, lead.Phone)
	}

	comment, err := s.codec.Decrypt(lead.Comment)
	if err != nil {
		return nil, err
	}

	req := &createUserRequest{
		Name:  lead.Name,
		Phone: phone,
		Email: lead.Email,
		Note:  comment,
	}
	if opts.FilialID > 0 {
		req.Filials = []int64{opts.FilialID}
	}
	if opts.ManagerID > 0 {
		req.Responsibles = []int64{opts.ManagerID}
	}
	if opts.StatusID > 0 {
		req.ClientStateID = opts.StatusID
	}

	var mappings []models.CRMFieldMappingModel
	if err := s.db.Where("active = ?", true).Find(&mappings).Error; err != nil {
		return nil, err
	}
	for _, m := range mappings {
		value, ok := leadFieldValue(lead, comment, m.LocalField)
		if !ok {
			continue
		}
		switch m.Kind {
		case models.CRMFieldAttribute:
			req.Attributes = append(req.Attributes, userAttribute{AttributeID: m.RemoteID, Value: value})
		case models.CRMFieldTag:
			req.Tags = append(req.Tags, m.RemoteID)
		case models.CRMFieldStatus:
			req.ClientStateID = m.RemoteID
		}
	}

	return req, nil
}

// leadFieldValue resolves a mapping's local field against the lead: the
// well-known columns first, then the free-form extra payload.
func leadFieldValue(lead *models.LeadModel, comment, field string) (interface{}, bool) {
	switch field {
	case "name":
		return lead.Name, lead.Name != ""
	case "phone":
		return lead.Phone, lead.Phone != ""
	case "email":
		return lead.Email, lead.Email != ""
	case "comment":
		return comment, comment != ""
	case "source":
		return lead.Source, lead.Source != ""
	}
	if lead.Extra != nil {
		if v, ok := lead.Extra[field]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// RetryFailed re-pushes failed leads. Used by the cron job; returns the
// number of successfully delivered leads.
func (s *Service) RetryFailed(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 20
	}
	var leads []models.LeadModel
	err := s.db.Where("crm_push_state = ?", models.CRMPushFailed).
		Order("created_at ASC").Limit(limit).Find(&leads).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, lead := range leads {
		if err := s.PushLead(ctx, lead.ID); err != nil {
			if errors.Is(err, ErrDisabled) {
				return sent, nil
			}
			s.logger.Warn("повторная отправка заявки не удалась",
				zap.String("lead_id", lead.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

// PruneLogs deletes request log rows older than the retention window.
func (s *Service) PruneLogs(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	res := s.db.Unscoped().Where("timestamp < ?", cutoff).Delete(&models.CRMRequestLogModel{})
	return res.RowsAffected, res.Error
}

func (s *Service) ListLogs(q pagination.Query, statusCode int) ([]models.CRMRequestLogModel, response.Pagination, error) {
	tx := s.db.Model(&models.CRMRequestLogModel{}).Order("timestamp DESC")
	if statusCode > 0 {
		tx = tx.Where("status_code = ?", statusCode)
	}

	var logs []models.CRMRequestLogModel
	pag, err := pagination.Paginate(tx, q, &logs)
	return logs, pag, err
}
