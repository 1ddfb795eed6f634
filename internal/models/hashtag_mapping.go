package models

// Where the post photo lands on the generated catalog item.
const (
	ImagePlacementCard = "card"
	ImagePlacementPage = "page"
	ImagePlacementBoth = "both"
	ImagePlacementNone = "none"
)

// HashtagMappingModel routes channel posts into the catalog: a post whose
// first known hashtag matches Hashtag becomes a catalog item on PageID with
// the presentation settings below. Hashtags are stored lower-case without
// the leading '#'.
type HashtagMappingModel struct {
	Base
	Hashtag    string `json:"hashtag"      gorm:"uniqueIndex;not null"`
	PageID     string `json:"page_id"      gorm:"index;not null"`
	Width      string `json:"width"        gorm:"default:'full'"`
	HasOwnPage bool   `json:"has_own_page" gorm:"default:true"`

	ButtonType   string `json:"button_type"   gorm:"default:'none'"`
	ButtonTarget string `json:"button_target"`

	// Separator splits the post text into title and body.
	Separator     string `json:"separator"      gorm:"default:'---'"`
	PreviewLength int    `json:"preview_length" gorm:"default:150"`

	ImagePlacement string `json:"image_placement" gorm:"default:'card'"`
	ImageWidth     int    `json:"image_width"     gorm:"default:0"`
	ImageHeight    int    `json:"image_height"    gorm:"default:0"`

	Active bool `json:"active" gorm:"default:true"`
	Order  int  `json:"order"  gorm:"default:0"`
}

func (HashtagMappingModel) TableName() string { return "hashtag_mappings" }
