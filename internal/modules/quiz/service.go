package quiz

import (
	"context"
	"errors"
	"fmt"

	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/modules/lead"
	"github.com/govorilka/core/internal/pkg/pagination"
	"github.com/govorilka/core/internal/pkg/response"
	"github.com/govorilka/core/internal/pkg/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrSlugTaken    = errors.New("квиз с таким slug уже существует")
	ErrQuizNotFound = errors.New("квиз не найден")
	ErrBadAnswers   = errors.New("ответы не соответствуют вопросам квиза")
)

type Service struct {
	db     *gorm.DB
	leads  *lead.Service
	logger *zap.Logger
}

func NewService(db *gorm.DB, leads *lead.Service, logger *zap.Logger) *Service {
	return &Service{db: db, leads: leads, logger: logger}
}

func (s *Service) List(q pagination.Query) ([]models.QuizModel, response.Pagination, error) {
	tx := s.db.Model(&models.QuizModel{}).Order("created_at DESC")

	var quizzes []models.QuizModel
	pag, err := pagination.Paginate(tx, q, &quizzes)
	return quizzes, pag, err
}

func (s *Service) GetByID(id string) (*models.QuizModel, error) {
	var quiz models.QuizModel
	err := s.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("quiz_questions.`order` ASC")
	}).Preload("Results").First(&quiz, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &quiz, nil
}

func (s *Service) GetBySlug(quizSlug string, activeOnly bool) (*models.QuizModel, error) {
	tx := s.db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("quiz_questions.`order` ASC")
	}).Preload("Results").Where("slug = ?", quizSlug)
	if activeOnly {
		tx = tx.Where("active = ?", true)
	}
	var quiz models.QuizModel
	if err := tx.First(&quiz).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &quiz, nil
}

func validateResults(results []ResultDTO) error {
	for _, r := range results {
		if r.MinScore > r.MaxScore {
			return fmt.Errorf("диапазон результата %q пуст: min %d > max %d", r.Title, r.MinScore, r.MaxScore)
		}
	}
	return nil
}

func validateQuestions(questions []QuestionDTO) error {
	for i, q := range questions {
		if len(q.Options) < 2 {
			return fmt.Errorf("у вопроса %d должно быть хотя бы два варианта ответа", i+1)
		}
	}
	return nil
}

func (s *Service) Create(dto *CreateQuizDTO) (*models.QuizModel, error) {
	if err := validateQuestions(dto.Questions); err != nil {
		return nil, err
	}
	if err := validateResults(dto.Results); err != nil {
		return nil, err
	}

	quiz := models.QuizModel{
		Title:       dto.Title,
		Slug:        dto.Slug,
		Description: dto.Description,
		Active:      true,
	}
	if quiz.Slug == "" {
		quiz.Slug = slug.Make(dto.Title)
	}
	if dto.Active != nil {
		quiz.Active = *dto.Active
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		tx.Model(&models.QuizModel{}).Where("slug = ?", quiz.Slug).Count(&count)
		if count > 0 {
			return ErrSlugTaken
		}
		if err := tx.Create(&quiz).Error; err != nil {
			return err
		}
		for i, q := range dto.Questions {
			question := models.QuizQuestionModel{
				QuizID:  quiz.ID,
				Text:    q.Text,
				Options: q.Options,
				Order:   i + 1,
			}
			if err := tx.Create(&question).Error; err != nil {
				return err
			}
		}
		for _, r := range dto.Results {
			result := models.QuizResultModel{
				QuizID:   quiz.ID,
				MinScore: r.MinScore,
				MaxScore: r.MaxScore,
				Title:    r.Title,
				Text:     r.Text,
			}
			if err := tx.Create(&result).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(quiz.ID)
}

// Update rewrites quiz metadata; when questions or results are supplied
// they replace the existing set wholesale.
func (s *Service) Update(id string, dto *UpdateQuizDTO) (*models.QuizModel, error) {
	quiz, err := s.GetByID(id)
	if err != nil || quiz == nil {
		return quiz, err
	}

	if dto.Questions != nil {
		if err := validateQuestions(*dto.Questions); err != nil {
			return nil, err
		}
	}
	if dto.Results != nil {
		if err := validateResults(*dto.Results); err != nil {
			return nil, err
		}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}
		if dto.Title != nil {
			updates["title"] = *dto.Title
		}
		if dto.Slug != nil && *dto.Slug != quiz.Slug {
			var count int64
			tx.Model(&models.QuizModel{}).Where("slug = ? AND id <> ?", *dto.Slug, id).Count(&count)
			if count > 0 {
				return ErrSlugTaken
			}
			updates["slug"] = *dto.Slug
		}
		if dto.Description != nil {
			updates["description"] = *dto.Description
		}
		if dto.Active != nil {
			updates["active"] = *dto.Active
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.QuizModel{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}

		if dto.Questions != nil {
			if err := tx.Unscoped().Where("quiz_id = ?", id).Delete(&models.QuizQuestionModel{}).Error; err != nil {
				return err
			}
			for i, q := range *dto.Questions {
				question := models.QuizQuestionModel{QuizID: id, Text: q.Text, Options: q.Options, Order: i + 1}
				if err := tx.Create(&question).Error; err != nil {
					return err
				}
			}
		}
		if dto.Results != nil {
			if err := tx.Unscoped().Where("quiz_id = ?", id).Delete(&models.QuizResultModel{}).Error; err != nil {
				return err
			}
			for _, r := range *dto.Results {
				result := models.QuizResultModel{
					QuizID: id, MinScore: r.MinScore, MaxScore: r.MaxScore, Title: r.Title, Text: r.Text,
				}
				if err := tx.Create(&result).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *Service) Delete(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quiz_id = ?", id).Delete(&models.QuizQuestionModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quiz_id = ?", id).Delete(&models.QuizResultModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.QuizModel{}, "id = ?", id).Error
	})
}

// PublicView strips score weights and result bands from a quiz.
func PublicView(quiz *models.QuizModel) publicQuiz {
	out := publicQuiz{
		ID:          quiz.ID,
		Title:       quiz.Title,
		Slug:        quiz.Slug,
		Description: quiz.Description,
		Questions:   make([]publicQuestion, len(quiz.Questions)),
	}
	for i, q := range quiz.Questions {
		pq := publicQuestion{ID: q.ID, Text: q.Text, Options: make([]publicOption, len(q.Options))}
		for j, opt := range q.Options {
			pq.Options[j] = publicOption{Text: opt.Text}
		}
		out.Questions[i] = pq
	}
	return out
}

// Score sums the chosen option weights. Every question must be answered
// with a valid option index.
func Score(quiz *models.QuizModel, answers map[string]int) (int, error) {
	if len(answers) != len(quiz.Questions) {
		return 0, fmt.Errorf("%w: ответов %d, вопросов %d", ErrBadAnswers, len(answers), len(quiz.Questions))
	}

	total := 0
	for _, q := range quiz.Questions {
		idx, ok := answers[q.ID]
		if !ok {
			return 0, fmt.Errorf("%w: нет ответа на вопрос %q", ErrBadAnswers, q.Text)
		}
		if idx < 0 || idx >= len(q.Options) {
			return 0, fmt.Errorf("%w: вариант %d вне диапазона", ErrBadAnswers, idx)
		}
		total += q.Options[idx].Score
	}
	return total, nil
}

// matchResult finds the band containing the score. Overlapping bands
// resolve to the first match in creation order.
func matchResult(quiz *models.QuizModel, score int) *models.QuizResultModel {
	for i := range quiz.Results {
		r := &quiz.Results[i]
		if score >= r.MinScore && score <= r.MaxScore {
			return r
		}
	}
	return nil
}

// Submit scores a submission, stores it and optionally captures a lead
// when the visitor left contact details.
func (s *Service) Submit(ctx context.Context, quizSlug string, dto *SubmitDTO) (*SubmitResult, error) {
	quiz, err := s.GetBySlug(quizSlug, true)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, ErrQuizNotFound
	}

	score, err := Score(quiz, dto.Answers)
	if err != nil {
		return nil, err
	}

	submission := models.QuizSubmissionModel{
		QuizID:  quiz.ID,
		Answers: dto.Answers,
		Score:   score,
	}
	result := matchResult(quiz, score)
	if result != nil {
		submission.ResultID = &result.ID
	}
	if err := s.db.Create(&submission).Error; err != nil {
		return nil, err
	}

	out := &SubmitResult{SubmissionID: submission.ID, Score: score}
	if result != nil {
		out.ResultTitle = result.Title
		out.ResultText = result.Text
	}

	if dto.Phone != "" && dto.Name != "" {
		comment := fmt.Sprintf("Квиз «%s»: %d баллов", quiz.Title, score)
		if result != nil {
			comment += " — " + result.Title
		}
		captured, err := s.leads.Create(ctx, &lead.CreateLeadDTO{
			Name:    dto.Name,
			Phone:   dto.Phone,
			Email:   dto.Email,
			Comment: comment,
			Source:  models.LeadSourceQuiz,
			QuizID:  &quiz.ID,
			Extra:   map[string]interface{}{"quiz_score": score},
		})
		if err != nil {
			// the visitor already has their result; a bad phone must not eat it
			s.logger.Warn("не удалось создать заявку по квизу", zap.Error(err))
		} else {
			out.LeadID = &captured.ID
			_ = s.db.Model(&submission).Update("lead_id", captured.ID).Error
		}
	}

	return out, nil
}
