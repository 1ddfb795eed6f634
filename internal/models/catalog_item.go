package models

// Catalog item width presets on the rendered page.
const (
	CatalogWidthFull = "full"
	CatalogWidthHalf = "half"
)

// Catalog item button behaviour.
const (
	ButtonTypeNone    = "none"
	ButtonTypeBooking = "booking" // opens a booking form, ButtonTarget = form slug
	ButtonTypeQuiz    = "quiz"    // opens a quiz, ButtonTarget = quiz slug
	ButtonTypeLink    = "link"    // external URL in ButtonTarget
)

// CatalogItemModel is a service/promo card shown on a page. Items created
// from Telegram channel posts carry the source message id so that edits and
// deletions in the channel find their way back to the same item.
type CatalogItemModel struct {
	Base
	Title      string `json:"title"       gorm:"not null"`
	Slug       string `json:"slug"        gorm:"uniqueIndex;not null"`
	CardText   string `json:"card_text"   gorm:"type:text"`
	Text       string `json:"text"        gorm:"type:longtext"`
	CardImage  string `json:"card_image"`
	PageImage  string `json:"page_image"`
	Width      string `json:"width"       gorm:"default:'full'"`
	HasOwnPage bool   `json:"has_own_page"`

	ButtonType   string `json:"button_type"   gorm:"default:'none'"`
	ButtonTarget string `json:"button_target"`

	// TGMessageID is the channel message this item was synced from.
	// NULL for items created by hand through the admin API.
	TGMessageID *int64 `json:"tg_message_id" gorm:"uniqueIndex"`

	PageID string `json:"page_id" gorm:"index;not null"`
	Order  int    `json:"order"   gorm:"default:0"`
	Active bool   `json:"active"  gorm:"default:true"`
}

func (CatalogItemModel) TableName() string { return "catalog_items" }
