package models

// BookingField describes one input of a booking form. Rules are evaluated
// on submit: a field with RequiredIf set becomes required only when the
// referenced field carries the given value.
type BookingField struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Kind     string `json:"kind"` // text | phone | select | checkbox | textarea
	Required bool   `json:"required"`
	Options  []string `json:"options,omitempty"`

	RequiredIf      string `json:"required_if,omitempty"`
	RequiredIfValue string `json:"required_if_value,omitempty"`
}

// BookingFormModel is an admin-defined lead capture form.
type BookingFormModel struct {
	Base
	Name       string         `json:"name"        gorm:"not null"`
	Title      string         `json:"title"`
	Slug       string         `json:"slug"        gorm:"uniqueIndex;not null"`
	ButtonText string         `json:"button_text" gorm:"default:'Записаться'"`
	Fields     []BookingField `json:"fields"      gorm:"type:longtext;serializer:json"`
	Active     bool           `json:"active"      gorm:"default:true"`
}

func (BookingFormModel) TableName() string { return "booking_forms" }
