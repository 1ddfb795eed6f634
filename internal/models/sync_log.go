package models

import "time"

// Sync log event types.
const (
	SyncEventReceived    = "received"
	SyncEventPost        = "post"
	SyncEventEdited      = "edited"
	SyncEventCreated     = "created"
	SyncEventUpdated     = "updated"
	SyncEventDeactivated = "deactivated"
	SyncEventSkipped     = "skipped"
	SyncEventError       = "error"
	SyncEventWarning     = "warning"
)

// Sync log statuses.
const (
	SyncStatusOK      = "ok"
	SyncStatusSkipped = "skipped"
	SyncStatusError   = "error"
)

// SyncLogModel is the append-only audit trail of the channel sync engine.
// Every inbound update and every decision made about it lands here with the
// raw payload, so an operator can reconstruct why an item looks the way it
// does. The engine never mutates or deletes rows.
type SyncLogModel struct {
	Base
	Event         string                 `json:"event"      gorm:"index;not null"`
	Status        string                 `json:"status"     gorm:"index;not null"`
	MessageID     int64                  `json:"message_id" gorm:"index"`
	ChatID        int64                  `json:"chat_id"`
	Hashtags      string                 `json:"hashtags"`
	CatalogItemID *string                `json:"catalog_item_id" gorm:"index"`
	Message       string                 `json:"message"         gorm:"type:text"`
	ErrorDetail   string                 `json:"error_detail"    gorm:"type:text"`
	RawPayload    map[string]interface{} `json:"raw_payload"     gorm:"type:longtext;serializer:json"`
	Timestamp     time.Time              `json:"timestamp"       gorm:"index"`
}

func (SyncLogModel) TableName() string { return "sync_logs" }
