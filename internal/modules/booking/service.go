package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/modules/lead"
	"github.com/govorilka/core/internal/pkg/pagination"
	"github.com/govorilka/core/internal/pkg/response"
	"github.com/govorilka/core/internal/pkg/slug"
	"gorm.io/gorm"
)

var (
	ErrSlugTaken    = errors.New("форма с таким slug уже существует")
	ErrFormNotFound = errors.New("форма не найдена")
)

// ValidationError carries per-field messages for a rejected submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for name, msg := range e.Fields {
		parts = append(parts, name+": "+msg)
	}
	return "форма заполнена с ошибками: " + strings.Join(parts, "; ")
}

// Known field kinds.
var validKinds = map[string]bool{
	"text": true, "phone": true, "select": true, "checkbox": true, "textarea": true,
}

type Service struct {
	db    *gorm.DB
	leads *lead.Service
}

func NewService(db *gorm.DB, leads *lead.Service) *Service {
	return &Service{db: db, leads: leads}
}

func (s *Service) List(q pagination.Query) ([]models.BookingFormModel, response.Pagination, error) {
	tx := s.db.Model(&models.BookingFormModel{}).Order("created_at DESC")

	var forms []models.BookingFormModel
	pag, err := pagination.Paginate(tx, q, &forms)
	return forms, pag, err
}

func (s *Service) GetByID(id string) (*models.BookingFormModel, error) {
	var form models.BookingFormModel
	if err := s.db.First(&form, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &form, nil
}

func (s *Service) GetBySlug(formSlug string, activeOnly bool) (*models.BookingFormModel, error) {
	tx := s.db.Where("slug = ?", formSlug)
	if activeOnly {
		tx = tx.Where("active = ?", true)
	}
	var form models.BookingFormModel
	if err := tx.First(&form).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &form, nil
}

func validateFields(fields []models.BookingField) error {
	seen := map[string]bool{}
	for _, f := range fields {
		if f.Name == "" {
			return errors.New("у поля формы должно быть имя")
		}
		if seen[f.Name] {
			return fmt.Errorf("поле %q указано дважды", f.Name)
		}
		seen[f.Name] = true
		if f.Kind != "" && !validKinds[f.Kind] {
			return fmt.Errorf("неизвестный тип поля %q: %s", f.Name, f.Kind)
		}
	}
	for _, f := range fields {
		if f.RequiredIf != "" && !seen[f.RequiredIf] {
			return fmt.Errorf("поле %q ссылается на несуществующее поле %q", f.Name, f.RequiredIf)
		}
	}
	return nil
}

// defaultFields is the minimal lead capture shape used when the admin
// creates a form without any fields.
func defaultFields() []models.BookingField {
	return []models.BookingField{
		{Name: "name", Label: "Имя", Kind: "text", Required: true},
		{Name: "phone", Label: "Телефон", Kind: "phone", Required: true},
		{Name: "comment", Label: "Комментарий", Kind: "textarea"},
	}
}

func (s *Service) Create(dto *CreateFormDTO) (*models.BookingFormModel, error) {
	fields := dto.Fields
	if len(fields) == 0 {
		fields = defaultFields()
	}
	if err := validateFields(fields); err != nil {
		return nil, err
	}

	form := models.BookingFormModel{
		Name:       dto.Name,
		Title:      dto.Title,
		Slug:       dto.Slug,
		ButtonText: dto.ButtonText,
		Fields:     fields,
		Active:     true,
	}
	if form.Slug == "" {
		form.Slug = slug.Make(dto.Name)
	}
	if form.ButtonText == "" {
		form.ButtonText = "Записаться"
	}
	if dto.Active != nil {
		form.Active = *dto.Active
	}

	var count int64
	s.db.Model(&models.BookingFormModel{}).Where("slug = ?", form.Slug).Count(&count)
	if count > 0 {
		return nil, ErrSlugTaken
	}

	if err := s.db.Create(&form).Error; err != nil {
		return nil, err
	}
	return &form, nil
}

func (s *Service) Update(id string, dto *UpdateFormDTO) (*models.BookingFormModel, error) {
	form, err := s.GetByID(id)
	if err != nil || form == nil {
		return form, err
	}

	updates := map[string]interface{}{}
	if dto.Name != nil {
		updates["name"] = *dto.Name
	}
	if dto.Title != nil {
		updates["title"] = *dto.Title
	}
	if dto.Slug != nil && *dto.Slug != form.Slug {
		var count int64
		s.db.Model(&models.BookingFormModel{}).Where("slug = ? AND id <> ?", *dto.Slug, id).Count(&count)
		if count > 0 {
			return nil, ErrSlugTaken
		}
		updates["slug"] = *dto.Slug
	}
	if dto.ButtonText != nil {
		updates["button_text"] = *dto.ButtonText
	}
	if dto.Fields != nil {
		if err := validateFields(*dto.Fields); err != nil {
			return nil, err
		}
		form.Fields = *dto.Fields
		if err := s.db.Model(form).Update("fields", form.Fields).Error; err != nil {
			return nil, err
		}
	}
	if dto.Active != nil {
		updates["active"] = *dto.Active
	}

	if len(updates) > 0 {
		if err := s.db.Model(form).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return form, nil
}

func (s *Service) Delete(id string) error {
	return s.db.Delete(&models.BookingFormModel{}, "id = ?", id).Error
}

// Submit validates a public submission against the form's field rules and
// captures a lead on success.
func (s *Service) Submit(ctx context.Context, formSlug string, dto *SubmitDTO) (*models.LeadModel, error) {
	form, err := s.GetBySlug(formSlug, true)
	if err != nil {
		return nil, err
	}
	if form == nil {
		return nil, ErrFormNotFound
	}

	if verr := evaluateRules(form.Fields, dto.Values); verr != nil {
		return nil, verr
	}

	leadDTO := &lead.CreateLeadDTO{
		Source: models.LeadSourceBooking,
		FormID: &form.ID,
		Extra:  map[string]interface{}{},
	}
	for _, f := range form.Fields {
		value, ok := dto.Values[f.Name]
		if !ok {
			continue
		}
		switch f.Name {
		case "name":
			leadDTO.Name = stringValue(value)
		case "phone":
			leadDTO.Phone = stringValue(value)
		case "email":
			leadDTO.Email = stringValue(value)
		case "comment":
			leadDTO.Comment = stringValue(value)
		default:
			leadDTO.Extra[f.Name] = value
		}
	}
	if len(leadDTO.Extra) == 0 {
		leadDTO.Extra = nil
	}

	return s.leads.Create(ctx, leadDTO)
}

// evaluateRules applies required and required_if rules to the submitted
// values. Unknown values are ignored: the form definition is the contract.
func evaluateRules(fields []models.BookingField, values map[string]interface{}) *ValidationError {
	problems := map[string]string{}
	for _, f := range fields {
		required := f.Required
		if !required && f.RequiredIf != "" {
			if stringValue(values[f.RequiredIf]) == f.RequiredIfValue {
				required = true
			}
		}
		if required && isEmptyValue(values[f.Name]) {
			problems[f.Name] = "обязательное поле"
		}
		if f.Kind == "select" && len(f.Options) > 0 && !isEmptyValue(values[f.Name]) {
			chosen := stringValue(values[f.Name])
			found := false
			for _, opt := range f.Options {
				if opt == chosen {
					found = true
					break
				}
			}
			if !found {
				problems[f.Name] = "недопустимое значение"
			}
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Fields: problems}
	}
	return nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}

func isEmptyValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case bool:
		return !val
	default:
		return false
	}
}
