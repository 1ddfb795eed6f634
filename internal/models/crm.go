package models

import "time"

// CRM field mapping kinds.
const (
	CRMFieldAttribute = "attribute"
	CRMFieldTag       = "tag"
	CRMFieldStatus    = "status"
)

// CRMFieldMappingModel binds a local lead field to a MoyKlass entity:
// an extra attribute id, a tag id, or a lead status id.
type CRMFieldMappingModel struct {
	Base
	LocalField string `json:"local_field" gorm:"uniqueIndex;not null"`
	Kind       string `json:"kind"        gorm:"default:'attribute'"`
	RemoteID   int64  `json:"remote_id"   gorm:"not null"`
	Active     bool   `json:"active"      gorm:"default:true"`
}

func (CRMFieldMappingModel) TableName() string { return "crm_field_mappings" }

// CRMRequestLogModel is the audit trail of outbound MoyKlass calls.
// Pruned by a cron job after 30 days.
type CRMRequestLogModel struct {
	Base
	Method     string    `json:"method"      gorm:"not null"`
	URL        string    `json:"url"         gorm:"not null"`
	ReqBody    string    `json:"req_body"    gorm:"type:longtext"`
	RespBody   string    `json:"resp_body"   gorm:"type:longtext"`
	StatusCode int       `json:"status_code" gorm:"index"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error"       gorm:"type:text"`
	Timestamp  time.Time `json:"timestamp"   gorm:"index"`
}

func (CRMRequestLogModel) TableName() string { return "crm_request_logs" }
