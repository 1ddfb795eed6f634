package models

// MediaFileModel tracks an uploaded asset. Files live under the static
// dir; when S3 offload is enabled the public URL points at the bucket
// and StorageKey holds the object key.
type MediaFileModel struct {
	Base
	Name         string `json:"name"          gorm:"not null;index"`
	OriginalName string `json:"original_name"`
	Kind         string `json:"kind"          gorm:"index"` // image | file
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
	URL          string `json:"url"`
	StorageKey   string `json:"storage_key,omitempty"`
	Offloaded    bool   `json:"offloaded"`
}

func (MediaFileModel) TableName() string { return "media_files" }
