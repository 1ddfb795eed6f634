package models

// QuizModel is a scored questionnaire (e.g. a speech development screening).
type QuizModel struct {
	Base
	Title       string              `json:"title" gorm:"not null"`
	Slug        string              `json:"slug"  gorm:"uniqueIndex;not null"`
	Description string              `json:"description" gorm:"type:text"`
	Questions   []QuizQuestionModel `json:"questions,omitempty" gorm:"foreignKey:QuizID"`
	Results     []QuizResultModel   `json:"results,omitempty"   gorm:"foreignKey:QuizID"`
	Active      bool                `json:"active" gorm:"default:true"`
}

func (QuizModel) TableName() string { return "quizzes" }

// QuizOption is one selectable answer with its score weight.
type QuizOption struct {
	Text  string `json:"text"`
	Score int    `json:"score"`
}

type QuizQuestionModel struct {
	Base
	QuizID  string       `json:"-"       gorm:"index;not null"`
	Text    string       `json:"text"    gorm:"not null"`
	Options []QuizOption `json:"options" gorm:"type:longtext;serializer:json"`
	Order   int          `json:"order"   gorm:"default:0"`
}

func (QuizQuestionModel) TableName() string { return "quiz_questions" }

// QuizResultModel is a score band: a submission whose total score falls into
// [MinScore, MaxScore] gets this result text.
type QuizResultModel struct {
	Base
	QuizID   string `json:"-"         gorm:"index;not null"`
	MinScore int    `json:"min_score"`
	MaxScore int    `json:"max_score"`
	Title    string `json:"title"`
	Text     string `json:"text"      gorm:"type:text"`
}

func (QuizResultModel) TableName() string { return "quiz_results" }

// QuizSubmissionModel records one completed quiz with the computed score.
type QuizSubmissionModel struct {
	Base
	QuizID   string         `json:"quiz_id"   gorm:"index;not null"`
	Answers  map[string]int `json:"answers"   gorm:"type:longtext;serializer:json"` // question id -> chosen option index
	Score    int            `json:"score"`
	ResultID *string        `json:"result_id" gorm:"index"`
	LeadID   *string        `json:"lead_id"   gorm:"index"`
}

func (QuizSubmissionModel) TableName() string { return "quiz_submissions" }
