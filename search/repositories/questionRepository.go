package repositories

import (
	"fmt"

	"question-bank-backend/db/models"
	searchservices "question-bank-backend/search/services"
	uploadservices "question-bank-backend/uploads/services"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
)

const questionIndexName = "questions"

// QuestionDocument is the searchable projection of a committed question.
type QuestionDocument struct {
	QuestionCode      string `json:"question_code"`
	OrganizationID    string `json:"organization_id"`
	QuestionText      string `json:"question_text"`
	Subject           string `json:"subject"`
	ChapterName       string `json:"chapter_name"`
	TopicName         string `json:"topic_name"`
	SubTopicName      string `json:"sub_topic_name"`
	Difficulty        string `json:"difficulty"`
	CognitiveLearning string `json:"cognitive_learning"`
	Standard          string `json:"standard"`
}

type QuestionSearchRepository struct {
	indexer *searchservices.IndexingService
}

type QuestionSearchRepositoryInterface interface {
	IndexQuestion(orgID uuid.UUID, questionCode string, rec *uploadservices.NormalizedRecord) error
	IndexExistingQuestions(questions []models.Question) error
	SearchQuestions(orgID uuid.UUID, queryString string, size int) (*bleve.SearchResult, error)
	DeleteQuestion(questionCode string) error
}

func NewQuestionSearchRepository(indexer *searchservices.IndexingService) (*QuestionSearchRepository, QuestionSearchRepositoryInterface) {
	repo := &QuestionSearchRepository{indexer: indexer}
	return repo, repo
}

// IndexQuestion indexes one freshly committed question. Satisfies the upload
// pipeline's indexer hook.
func (r *QuestionSearchRepository) IndexQuestion(orgID uuid.UUID, questionCode string, rec *uploadservices.NormalizedRecord) error {
	doc := QuestionDocument{
		QuestionCode:      questionCode,
		OrganizationID:    orgID.String(),
		QuestionText:      rec.QuestionText,
		Subject:           rec.Subject,
		ChapterName:       rec.ChapterName,
		TopicName:         rec.TopicName,
		SubTopicName:      rec.SubTopicName,
		Difficulty:        rec.Difficulty,
		CognitiveLearning: rec.CognitiveLearning,
		Standard:          rec.Standard,
	}
	return r.indexer.IndexDocument(questionIndexName, questionCode, doc)
}

// IndexExistingQuestions backfills the index from persisted questions, used
// at startup.
func (r *QuestionSearchRepository) IndexExistingQuestions(questions []models.Question) error {
	for _, q := range questions {
		doc := QuestionDocument{
			QuestionCode:   q.QuestionCode,
			OrganizationID: q.OrganizationID.String(),
			QuestionText:   q.QuestionText,
		}
		if q.Taxonomy != nil {
			doc.ChapterName = q.Taxonomy.ChapterName
			doc.TopicName = q.Taxonomy.TopicName
			doc.SubTopicName = q.Taxonomy.SubTopicName
			doc.Standard = q.Taxonomy.Standard
			if q.Taxonomy.Subject != nil {
				doc.Subject = q.Taxonomy.Subject.Name
			}
		}
		if q.Difficulty != nil {
			doc.Difficulty = q.Difficulty.Name
		}
		if q.CognitiveLearning != nil {
			doc.CognitiveLearning = q.CognitiveLearning.Name
		}
		if err := r.indexer.IndexDocument(questionIndexName, q.QuestionCode, doc); err != nil {
			return fmt.Errorf("failed to index question %s: %w", q.QuestionCode, err)
		}
	}
	return nil
}

// SearchQuestions runs a full-text query scoped to one organization.
func (r *QuestionSearchRepository) SearchQuestions(orgID uuid.UUID, queryString string, size int) (*bleve.SearchResult, error) {
	textQuery := bleve.NewMatchQuery(queryString)

	orgQuery := bleve.NewTermQuery(orgID.String())
	orgQuery.SetField("organization_id")

	combined := bleve.NewConjunctionQuery(textQuery, orgQuery)
	return r.indexer.SearchIndex(questionIndexName, combined, size)
}

func (r *QuestionSearchRepository) DeleteQuestion(questionCode string) error {
	return r.indexer.DeleteDocument(questionIndexName, questionCode)
}
