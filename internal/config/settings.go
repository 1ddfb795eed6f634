package config

// SiteSettings is the operator-editable configuration stored in the
// database (options table, key="settings"). Loaded lazily and cached by
// the settings service; startup configuration that needs a restart to
// change lives in AppConfig instead.
type SiteSettings struct {
	Site     SiteOptions     `json:"site"`
	CRM      CRMOptions      `json:"crm"`
	Notify   NotifyOptions   `json:"notify"`
	S3       S3Options       `json:"s3"`
	Telegram TelegramOptions `json:"telegram"`
}

type SiteOptions struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
}

// CRMOptions controls the MoyKlass lead push.
type CRMOptions struct {
	Enable bool `json:"enable"`
	// FilialID and ManagerID land on every created lead.
	FilialID  int64 `json:"filial_id"`
	ManagerID int64 `json:"manager_id"`
	// StatusID is the initial lead status; 0 keeps the CRM default.
	StatusID int64 `json:"status_id"`
}

type NotifyOptions struct {
	Enable        bool `json:"enable"`
	NotifyOnLead  bool `json:"notify_on_lead"`
	NotifyOnError bool `json:"notify_on_error"`
}

type S3Options struct {
	Enable          bool   `json:"enable"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	CustomDomain    string `json:"custom_domain"`
	PathStyleAccess bool   `json:"path_style_access"`
}

// TelegramOptions are the runtime-tunable parts of the bot integration.
// The bot token and channel identity stay in AppConfig.
type TelegramOptions struct {
	NotifyChatID int64 `json:"notify_chat_id"`
	SyncEnabled  bool  `json:"sync_enabled"`
}

// DefaultSiteSettings returns the settings document written on first launch.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		Site: SiteOptions{
			Title:       "Говорилка — центр развития речи",
			Description: "Логопедический центр для детей и взрослых",
		},
		CRM: CRMOptions{
			Enable: false,
		},
		Notify: NotifyOptions{
			Enable:        true,
			NotifyOnLead:  true,
			NotifyOnError: false,
		},
		S3: S3Options{
			Enable: false,
			Region: "auto",
		},
		Telegram: TelegramOptions{
			SyncEnabled: true,
		},
	}
}
