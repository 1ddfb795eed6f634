package models

import "time"

// Lead sources.
const (
	LeadSourceBooking = "booking"
	LeadSourceQuiz    = "quiz"
	LeadSourceManual  = "manual"
)

// CRM push states of a lead.
const (
	CRMPushPending = "pending"
	CRMPushSent    = "sent"
	CRMPushFailed  = "failed"
)

// LeadModel is a captured enquiry. Comment is encrypted at rest by
// pkg/secret; the service layer stores and reads it through the codec,
// never directly.
type LeadModel struct {
	Base
	Name   string `json:"name"   gorm:"not null"`
	Phone  string `json:"phone"  gorm:"index;not null"`
	Email  string `json:"email"`
	Source string `json:"source" gorm:"index;default:'manual'"`

	// Comment holds the encrypted value (enc:v1:... or legacy plaintext).
	Comment string `json:"-" gorm:"type:text"`

	FormID *string                `json:"form_id" gorm:"index"`
	QuizID *string                `json:"quiz_id" gorm:"index"`
	Extra  map[string]interface{} `json:"extra"   gorm:"type:longtext;serializer:json"`

	CRMPushState string     `json:"crm_push_state" gorm:"index;default:'pending'"`
	CRMUserID    *int64     `json:"crm_user_id"`
	CRMPushedAt  *time.Time `json:"crm_pushed_at"`
	CRMPushError string     `json:"crm_push_error" gorm:"type:text"`
}

func (LeadModel) TableName() string { return "leads" }
