package repositories

import (
	"testing"

	"question-bank-backend/db/models"
	searchservices "question-bank-backend/search/services"
	uploadservices "question-bank-backend/uploads/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSearchRepo(t *testing.T) *QuestionSearchRepository {
	t.Helper()
	// Empty base path keeps the index in memory.
	indexer := searchservices.NewIndexingService(zap.NewNop(), "")
	repo, _ := NewQuestionSearchRepository(indexer)
	return repo
}

func sampleRecord(text string) *uploadservices.NormalizedRecord {
	return &uploadservices.NormalizedRecord{
		QuestionText:      text,
		AnswerOptionA:     "Option A",
		AnswerOptionB:     "Option B",
		AnswerOptionC:     "Option C",
		AnswerOptionD:     "Option D",
		CorrectAnswer:     "B",
		ChapterName:       "States of Matter",
		TopicName:         "Phase Transitions",
		SubTopicName:      "Boiling and Evaporation",
		Medium:            "English",
		Board:             "CBSE",
		State:             "Maharashtra",
		Standard:          "8",
		Subject:           "Science",
		CognitiveLearning: "Understanding",
		Difficulty:        "Easy",
		Marks:             decimal.NewFromInt(1),
	}
}

func TestSearchQuestions_MatchesIndexedText(t *testing.T) {
	repo := newSearchRepo(t)
	orgID := uuid.New()

	require.NoError(t, repo.IndexQuestion(orgID, "Q1",
		sampleRecord("What is the boiling point of water at sea level?")))
	require.NoError(t, repo.IndexQuestion(orgID, "Q2",
		sampleRecord("Which planet is closest to the sun?")))

	result, err := repo.SearchQuestions(orgID, "boiling water", 10)
	require.NoError(t, err)
	require.NotZero(t, result.Total)
	assert.Equal(t, "Q1", result.Hits[0].ID)

	result, err = repo.SearchQuestions(orgID, "nonexistent topic keyword", 10)
	require.NoError(t, err)
	for _, hit := range result.Hits {
		assert.NotEqual(t, "Q2", hit.ID)
	}
}

func TestSearchQuestions_ScopedToOrganization(t *testing.T) {
	repo := newSearchRepo(t)
	orgA := uuid.New()
	orgB := uuid.New()

	require.NoError(t, repo.IndexQuestion(orgA, "Q1",
		sampleRecord("What is the boiling point of water at sea level?")))

	// The same text indexed for another organization must not leak into
	// orgB's results.
	result, err := repo.SearchQuestions(orgB, "boiling point", 10)
	require.NoError(t, err)
	assert.Zero(t, result.Total)

	result, err = repo.SearchQuestions(orgA, "boiling point", 10)
	require.NoError(t, err)
	require.NotZero(t, result.Total)
	assert.Equal(t, "Q1", result.Hits[0].ID)
}

func TestDeleteQuestion_RemovesFromIndex(t *testing.T) {
	repo := newSearchRepo(t)
	orgID := uuid.New()

	require.NoError(t, repo.IndexQuestion(orgID, "Q1",
		sampleRecord("What is the boiling point of water at sea level?")))
	require.NoError(t, repo.DeleteQuestion("Q1"))

	result, err := repo.SearchQuestions(orgID, "boiling", 10)
	require.NoError(t, err)
	assert.Zero(t, result.Total)
}

func TestIndexExistingQuestions_Backfill(t *testing.T) {
	repo := newSearchRepo(t)
	orgID := uuid.New()

	require.NoError(t, repo.IndexExistingQuestions([]models.Question{{
		QuestionCode:   "Q7",
		OrganizationID: orgID,
		QuestionText:   "Which gas do plants absorb during photosynthesis?",
	}}))

	result, err := repo.SearchQuestions(orgID, "photosynthesis", 10)
	require.NoError(t, err)
	require.NotZero(t, result.Total)
	assert.Equal(t, "Q7", result.Hits[0].ID)
}
