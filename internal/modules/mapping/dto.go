package mapping

type CreateMappingDTO struct {
	Hashtag    string `json:"hashtag" binding:"required"`
	PageID     string `json:"page_id" binding:"required"`
	Width      string `json:"width"`
	HasOwnPage *bool  `json:"has_own_page"`

	ButtonType   string `json:"button_type"`
	ButtonTarget string `json:"button_target"`

	Separator     *string `json:"separator"`
	PreviewLength *int    `json:"preview_length"`

	ImagePlacement string `json:"image_placement"`
	ImageWidth     int    `json:"image_width"`
	ImageHeight    int    `json:"image_height"`

	Active *bool `json:"active"`
	Order  *int  `json:"order"`
}

type UpdateMappingDTO struct {
	Hashtag    *string `json:"hashtag"`
	PageID     *string `json:"page_id"`
	Width      *string `json:"width"`
	HasOwnPage *bool   `json:"has_own_page"`

	ButtonType   *string `json:"button_type"`
	ButtonTarget *string `json:"button_target"`

	Separator     *string `json:"separator"`
	PreviewLength *int    `json:"preview_length"`

	ImagePlacement *string `json:"image_placement"`
	ImageWidth     *int    `json:"image_width"`
	ImageHeight    *int    `json:"image_height"`

	Active *bool `json:"active"`
	Order  *int  `json:"order"`
}
