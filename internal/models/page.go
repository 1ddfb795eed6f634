package models

// PageModel is a site page that hosts catalog sections and static text.
type PageModel struct {
	Base
	Title  string `json:"title"  gorm:"not null"`
	Slug   string `json:"slug"   gorm:"uniqueIndex;not null"`
	Text   string `json:"text"   gorm:"type:longtext"`
	Order  int    `json:"order"  gorm:"default:0"`
	Active bool   `json:"active" gorm:"default:true"`
}

func (PageModel) TableName() string { return "pages" }
