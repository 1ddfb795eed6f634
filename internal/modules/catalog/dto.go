package catalog

import "github.com/govorilka/core/internal/models"

type CreateItemDTO struct {
	Title        string `json:"title" binding:"required"`
	Slug         string `json:"slug"`
	CardText     string `json:"card_text"`
	Text         string `json:"text"`
	CardImage    string `json:"card_image"`
	PageImage    string `json:"page_image"`
	Width        string `json:"width"`
	HasOwnPage   *bool  `json:"has_own_page"`
	ButtonType   string `json:"button_type"`
	ButtonTarget string `json:"button_target"`
	PageID       string `json:"page_id" binding:"required"`
	Order        *int   `json:"order"`
	Active       *bool  `json:"active"`
}

type UpdateItemDTO struct {
	Title        *string `json:"title"`
	CardText     *string `json:"card_text"`
	Text         *string `json:"text"`
	CardImage    *string `json:"card_image"`
	PageImage    *string `json:"page_image"`
	Width        *string `json:"width"`
	HasOwnPage   *bool   `json:"has_own_page"`
	ButtonType   *string `json:"button_type"`
	ButtonTarget *string `json:"button_target"`
	PageID       *string `json:"page_id"`
	Order        *int    `json:"order"`
	Active       *bool   `json:"active"`
}

// ReorderDTO carries the full desired ordering of a page's items.
type ReorderDTO struct {
	PageID  string   `json:"page_id"  binding:"required"`
	ItemIDs []string `json:"item_ids" binding:"required"`
}

type ListQuery struct {
	PageID string `form:"page_id"`
	Active *bool  `form:"active"`
	Synced *bool  `form:"synced"` // true: only items that came from the channel
}

// itemResponse is the public detail view with rendered body text.
type itemResponse struct {
	models.CatalogItemModel
	TextHTML string `json:"text_html"`
}
