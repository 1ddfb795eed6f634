package booking

import "github.com/govorilka/core/internal/models"

type CreateFormDTO struct {
	Name       string                `json:"name" binding:"required"`
	Title      string                `json:"title"`
	Slug       string                `json:"slug"`
	ButtonText string                `json:"button_text"`
	Fields     []models.BookingField `json:"fields"`
	Active     *bool                 `json:"active"`
}

type UpdateFormDTO struct {
	Name       *string                `json:"name"`
	Title      *string                `json:"title"`
	Slug       *string                `json:"slug"`
	ButtonText *string                `json:"button_text"`
	Fields     *[]models.BookingField `json:"fields"`
	Active     *bool                  `json:"active"`
}

// SubmitDTO is the public submission: values keyed by field name.
type SubmitDTO struct {
	Values map[string]interface{} `json:"values" binding:"required"`
}
