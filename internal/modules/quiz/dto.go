package quiz

import "github.com/govorilka/core/internal/models"

type QuestionDTO struct {
	Text    string              `json:"text" binding:"required"`
	Options []models.QuizOption `json:"options" binding:"required"`
}

type ResultDTO struct {
	MinScore int    `json:"min_score"`
	MaxScore int    `json:"max_score"`
	Title    string `json:"title"`
	Text     string `json:"text"`
}

type CreateQuizDTO struct {
	Title       string        `json:"title" binding:"required"`
	Slug        string        `json:"slug"`
	Description string        `json:"description"`
	Questions   []QuestionDTO `json:"questions"`
	Results     []ResultDTO   `json:"results"`
	Active      *bool         `json:"active"`
}

type UpdateQuizDTO struct {
	Title       *string        `json:"title"`
	Slug        *string        `json:"slug"`
	Description *string        `json:"description"`
	Questions   *[]QuestionDTO `json:"questions"`
	Results     *[]ResultDTO   `json:"results"`
	Active      *bool          `json:"active"`
}

// SubmitDTO is a public submission: chosen option index per question id,
// plus optional contact details that turn the result into a lead.
type SubmitDTO struct {
	Answers map[string]int `json:"answers" binding:"required"`

	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// publicOption strips the score weight from the storefront view.
type publicOption struct {
	Text string `json:"text"`
}

type publicQuestion struct {
	ID      string         `json:"id"`
	Text    string         `json:"text"`
	Options []publicOption `json:"options"`
}

// publicQuiz is what the storefront widget renders.
type publicQuiz struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Slug        string           `json:"slug"`
	Description string           `json:"description"`
	Questions   []publicQuestion `json:"questions"`
}

// SubmitResult is the outcome returned to the visitor.
type SubmitResult struct {
	SubmissionID string  `json:"submission_id"`
	Score        int     `json:"score"`
	ResultTitle  string  `json:"result_title,omitempty"`
	ResultText   string  `json:"result_text,omitempty"`
	LeadID       *string `json:"lead_id,omitempty"`
}
