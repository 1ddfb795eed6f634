package quiz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/govorilka/core/internal/database"
	"github.com/govorilka/core/internal/models"
	"github.com/govorilka/core/internal/modules/lead"
	"github.com/govorilka/core/internal/pkg/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	leads := lead.NewService(db, secret.NewCodec("key"), nil, nil, zap.NewNop())
	return NewService(db, leads, zap.NewNop())
}

func screeningQuiz(t *testing.T, svc *Service) *models.QuizModel {
	t.Helper()
	quiz, err := svc.Create(&CreateQuizDTO{
		Title: "Скрининг развития речи",
		Slug:  "screening",
		Questions: []QuestionDTO{
			{Text: "Ребёнок говорит фразами?", Options: []models.QuizOption{
				{Text: "Да", Score: 0}, {Text: "Иногда", Score: 1}, {Text: "Нет", Score: 2},
			}},
			{Text: "Понимает обращённую речь?", Options: []models.QuizOption{
				{Text: "Да", Score: 0}, {Text: "Нет", Score: 2},
			}},
		},
		Results: []ResultDTO{
			{MinScore: 0, MaxScore: 1, Title: "Норма", Text: "Развитие в пределах нормы"},
			{MinScore: 2, MaxScore: 4, Title: "Нужна консультация", Text: "Рекомендуем показаться логопеду"},
		},
	})
	require.NoError(t, err)
	return quiz
}

func TestCreateBuildsQuestionsInOrder(t *testing.T) {
	svc := newTestService(t, newTestDB(t))
	quiz := screeningQuiz(t, svc)

	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, 1, quiz.Questions[0].Order)
	assert.Equal(t, "Ребёнок говорит фразами?", quiz.Questions[0].Text)
	require.Len(t, quiz.Results, 2)
}

func TestCreateRejectsEmptyBand(t *testing.T) {
	svc := newTestService(t, newTestDB(t))

	_, err := svc.Create(&CreateQuizDTO{
		Title:   "Сломанный",
		Results: []ResultDTO{{MinScore: 5, MaxScore: 1, Title: "X"}},
	})
	assert.Error(t, err)
}

func TestScore(t *testing.T) {
	svc := newTestService(t, newTestDB(t))
	quiz := screeningQuiz(t, svc)

	score, err := Score(quiz, map[string]int{
		quiz.Questions[0].ID: 2, // Нет → 2
		quiz.Questions[1].ID: 1, // Нет → 2
	})
	require.NoError(t, err)
	assert.Equal(t, 4, score)
}

func TestScoreRejectsBadAnswers(t *testing.T) {
	svc := newTestService(t, newTestDB(t))
	quiz := screeningQuiz(t, svc)

	// missing answer
	_, err := Score(quiz, map[string]int{quiz.Questions[0].ID: 0})
	assert.ErrorIs(t, err, ErrBadAnswers)

	// option index out of range
	_, err = Score(quiz, map[string]int{
		quiz.Questions[0].ID: 5,
		quiz.Questions[1].ID: 0,
	})
	assert.ErrorIs(t, err, ErrBadAnswers)
}

func TestSubmitMatchesBandAndStoresSubmission(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	quiz := screeningQuiz(t, svc)

	result, err := svc.Submit(t.Context(), "screening", &SubmitDTO{
		Answers: map[string]int{
			quiz.Questions[0].ID: 1, // 1
			quiz.Questions[1].ID: 1, // 2
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Score)
	assert.Equal(t, "Нужна консультация", result.ResultTitle)
	assert.Nil(t, result.LeadID)

	var submission models.QuizSubmissionModel
	require.NoError(t, db.First(&submission, "id = ?", result.SubmissionID).Error)
	assert.Equal(t, 3, submission.Score)
	require.NotNil(t, submission.ResultID)
}

func TestSubmitWithContactCreatesLead(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	quiz := screeningQuiz(t, svc)

	result, err := svc.Submit(t.Context(), "screening", &SubmitDTO{
		Answers: map[string]int{
			quiz.Questions[0].ID: 0,
			quiz.Questions[1].ID: 0,
		},
		Name:  "Мама Саши",
		Phone: "9001234567",
	})
	require.NoError(t, err)
	require.NotNil(t, result.LeadID)

	var captured models.LeadModel
	require.NoError(t, db.First(&captured, "id = ?", *result.LeadID).Error)
	assert.Equal(t, models.LeadSourceQuiz, captured.Source)
	require.NotNil(t, captured.QuizID)
	assert.Equal(t, quiz.ID, *captured.QuizID)

	var submission models.QuizSubmissionModel
	require.NoError(t, db.First(&submission, "id = ?", result.SubmissionID).Error)
	require.NotNil(t, submission.LeadID)
	assert.Equal(t, *result.LeadID, *submission.LeadID)
}

func TestSubmitBadPhoneStillReturnsResult(t *testing.T) {
	svc := newTestService(t, newTestDB(t))
	quiz := screeningQuiz(t, svc)

	result, err := svc.Submit(t.Context(), "screening", &SubmitDTO{
		Answers: map[string]int{
			quiz.Questions[0].ID: 0,
			quiz.Questions[1].ID: 0,
		},
		Name:  "Аноним",
		Phone: "123",
	})
	require.NoError(t, err)
	assert.Equal(t, "Норма", result.ResultTitle)
	assert.Nil(t, result.LeadID)
}

func TestPublicViewHidesScores(t *testing.T) {
	svc := newTestService(t, newTestDB(t))
	quiz := screeningQuiz(t, svc)

	view := PublicView(quiz)
	require.Len(t, view.Questions, 2)
	assert.Equal(t, "Да", view.Questions[0].Options[0].Text)
	// the public payload type carries no score field at all
	assert.Equal(t, publicOption{Text: "Да"}, view.Questions[0].Options[0])
}

func TestUpdateReplacesQuestions(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	quiz := screeningQuiz(t, svc)

	newQuestions := []QuestionDTO{
		{Text: "Новый вопрос", Options: []models.QuizOption{{Text: "Да"}, {Text: "Нет", Score: 1}}},
	}
	updated, err := svc.Update(quiz.ID, &UpdateQuizDTO{Questions: &newQuestions})
	require.NoError(t, err)
	require.Len(t, updated.Questions, 1)
	assert.Equal(t, "Новый вопрос", updated.Questions[0].Text)

	var count int64
	db.Model(&models.QuizQuestionModel{}).Where("quiz_id = ?", quiz.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}
