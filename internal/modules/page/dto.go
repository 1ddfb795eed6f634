package page

import "github.com/govorilka/core/internal/models"

type CreatePageDTO struct {
	Title  string `json:"title" binding:"required"`
	Slug   string `json:"slug"`
	Text   string `json:"text"`
	Order  *int   `json:"order"`
	Active *bool  `json:"active"`
}

type UpdatePageDTO struct {
	Title  *string `json:"title"`
	Slug   *string `json:"slug"`
	Text   *string `json:"text"`
	Order  *int    `json:"order"`
	Active *bool   `json:"active"`
}

// pageResponse is the public page view: the stored markdown plus its
// rendered HTML.
type pageResponse struct {
	models.PageModel
	TextHTML string `json:"text_html"`
}
