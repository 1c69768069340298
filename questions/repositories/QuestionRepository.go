package repositories

import (
	"context"
	"errors"
	"fmt"

	"question-bank-backend/db/models"
	qservices "question-bank-backend/questions/services"
	"question-bank-backend/uploads/services"
	"question-bank-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuestionRepository interface {
	SubjectExists(ctx context.Context, owner models.OwnerContext, name string) (bool, error)
	CognitiveLearningExists(ctx context.Context, owner models.OwnerContext, name string) (bool, error)
	DifficultyExists(ctx context.Context, owner models.OwnerContext, name string) (bool, error)

	NewCommitter(owner models.OwnerContext, createdBy string) services.Committer

	GetQuestionByCode(orgID uuid.UUID, code string) (*models.Question, error)
	GetFilteredQuestions(orgID uuid.UUID, pageSize int, offset int, filters map[string]string) ([]models.Question, int64, error)
}

type questionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{
		db: db,
	}
}

func (r *questionRepository) SubjectExists(ctx context.Context, owner models.OwnerContext, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Subject{}).
		Where("organization_id = ? AND LOWER(name) = ? AND is_active = ?",
			owner.OrganizationID, utils.NormalizeText(name), true).
		Count(&count).Error
	return count > 0, err
}

func (r *questionRepository) CognitiveLearningExists(ctx context.Context, owner models.OwnerContext, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CognitiveLearning{}).
		Where("organization_id = ? AND LOWER(name) = ?", owner.OrganizationID, utils.NormalizeText(name)).
		Count(&count).Error
	return count > 0, err
}

func (r *questionRepository) DifficultyExists(ctx context.Context, owner models.OwnerContext, name string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Difficulty{}).
		Where("organization_id = ? AND LOWER(name) = ?", owner.OrganizationID, utils.NormalizeText(name)).
		Count(&count).Error
	return count > 0, err
}

func (r *questionRepository) GetQuestionByCode(orgID uuid.UUID, code string) (*models.Question, error) {
	var question models.Question
	err := r.db.
		Preload("Taxonomy").
		Preload("CognitiveLearning").
		Preload("Difficulty").
		First(&question, "organization_id = ? AND question_code = ?", orgID, code).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("question with code '%s' not found", code)
		}
		return nil, err
	}
	return &question, nil
}

// GetFilteredQuestions retrieves questions for one organization with
// filtering and pagination, newest first.
func (r *questionRepository) GetFilteredQuestions(orgID uuid.UUID, pageSize int, offset int, filters map[string]string) ([]models.Question, int64, error) {
	var questions []models.Question
	var total int64

	db := r.db.Model(&models.Question{}).Where("organization_id = ?", orgID)

	for key, value := range filters {
		switch key {
		case "difficulty_id":
			db = db.Where("difficulty_id = ?", value)
		case "cognitive_learning_id":
			db = db.Where("cognitive_learning_id = ?", value)
		case "taxonomy_id":
			db = db.Where("taxonomy_id = ?", value)
		case "text":
			db = db.Where("LOWER(question_text) LIKE ?", "%"+value+"%")
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("created_at DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&questions).Error
	if err != nil {
		return nil, 0, err
	}

	return questions, total, nil
}

// NewCommitter builds a per-job committer. The committer carries the master
// data caches and the code generator, so repeated names inside one upload
// resolve without extra queries.
func (r *questionRepository) NewCommitter(owner models.OwnerContext, createdBy string) services.Committer {
	return &batchCommitter{
		db:        r.db,
		owner:     owner,
		createdBy: createdBy,
		codes:     qservices.NewCodeGenerator(r.db, owner.OrganizationID),
		boards:    make(map[string]uuid.UUID),
		states:    make(map[string]uuid.UUID),
		mediums:   make(map[string]uuid.UUID),
		subjects:  make(map[string]uuid.UUID),
		cognitive: make(map[string]uuid.UUID),
		difficult: make(map[string]uuid.UUID),
		taxos:     make(map[string]uuid.UUID),
	}
}

type batchCommitter struct {
	db        *gorm.DB
	owner     models.OwnerContext
	createdBy string
	codes     *qservices.CodeGenerator

	boards    map[string]uuid.UUID
	states    map[string]uuid.UUID
	mediums   map[string]uuid.UUID
	subjects  map[string]uuid.UUID
	cognitive map[string]uuid.UUID
	difficult map[string]uuid.UUID
	taxos     map[string]uuid.UUID
}

// commitAttempts bounds the retries after a generated-code collision with a
// concurrent job in the same organization.
const commitAttempts = 3

// Commit persists one validated row in its own transaction. A question whose
// text already exists in the organization returns services.ErrConflict; the
// caller records the row as a conflict and moves on.
//
// Code sequences are seeded per job, so two jobs racing on the worker pool
// can mint the same code. A unique-index failure that is not a duplicate of
// the question text resyncs the generator from the committed maxima and
// retries, instead of mis-reporting the row as a conflict.
func (c *batchCommitter) Commit(ctx context.Context, rec *services.NormalizedRecord) (string, error) {
	for attempt := 0; attempt < commitAttempts; attempt++ {
		code, err := c.commitOnce(ctx, rec)
		if err == nil {
			return code, nil
		}
		if errors.Is(err, services.ErrConflict) || !errors.Is(err, gorm.ErrDuplicatedKey) {
			return "", err
		}

		// A unique index tripped inside the transaction. Duplicate text that
		// raced past the precheck is a real conflict; anything else is a
		// code collision with a concurrent job.
		var existing int64
		cerr := c.db.WithContext(ctx).Model(&models.Question{}).
			Where("organization_id = ? AND normalized_text = ?", c.owner.OrganizationID, rec.NormalizedText).
			Count(&existing).Error
		if cerr != nil {
			return "", fmt.Errorf("duplicate recheck failed: %w", cerr)
		}
		if existing > 0 {
			return "", services.ErrConflict
		}

		c.resetCaches()
		c.codes.Resync()
	}
	return "", fmt.Errorf("failed to commit question after %d code collisions", commitAttempts)
}

// resetCaches drops the master-data caches. Rows resolved during a rolled
// back transaction may hold ids that never committed, so a retry must look
// everything up again.
func (c *batchCommitter) resetCaches() {
	c.boards = make(map[string]uuid.UUID)
	c.states = make(map[string]uuid.UUID)
	c.mediums = make(map[string]uuid.UUID)
	c.subjects = make(map[string]uuid.UUID)
	c.cognitive = make(map[string]uuid.UUID)
	c.difficult = make(map[string]uuid.UUID)
	c.taxos = make(map[string]uuid.UUID)
}

func (c *batchCommitter) commitOnce(ctx context.Context, rec *services.NormalizedRecord) (string, error) {
	// Cheap precheck before opening the transaction. The unique index on
	// (organization_id, normalized_text) still backs this up under races.
	var existing int64
	err := c.db.WithContext(ctx).Model(&models.Question{}).
		Where("organization_id = ? AND normalized_text = ?", c.owner.OrganizationID, rec.NormalizedText).
		Count(&existing).Error
	if err != nil {
		return "", fmt.Errorf("duplicate precheck failed: %w", err)
	}
	if existing > 0 {
		return "", services.ErrConflict
	}

	var questionCode string
	err = c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		boardID, err := c.getOrCreateBoard(tx, rec.Board)
		if err != nil {
			return err
		}
		stateID, err := c.getOrCreateState(tx, rec.State)
		if err != nil {
			return err
		}
		mediumID, err := c.getOrCreateMedium(tx, rec.Medium)
		if err != nil {
			return err
		}
		subjectID, err := c.getOrCreateSubject(tx, rec.Subject, rec.Standard, mediumID)
		if err != nil {
			return err
		}
		cognitiveID, err := c.lookupCognitive(tx, rec.CognitiveLearning)
		if err != nil {
			return err
		}
		difficultyID, err := c.lookupDifficulty(tx, rec.Difficulty)
		if err != nil {
			return err
		}

		taxonomyID, err := c.getOrCreateTaxonomy(tx, rec, boardID, stateID, mediumID, subjectID)
		if err != nil {
			return err
		}

		questionCode, err = c.codes.NextQuestionCode()
		if err != nil {
			return err
		}

		question := &models.Question{
			QuestionCode:        questionCode,
			OrganizationID:      c.owner.OrganizationID,
			QuestionText:        rec.QuestionText,
			NormalizedText:      rec.NormalizedText,
			AnswerOptionA:       rec.AnswerOptionA,
			AnswerOptionB:       rec.AnswerOptionB,
			AnswerOptionC:       rec.AnswerOptionC,
			AnswerOptionD:       rec.AnswerOptionD,
			CorrectAnswer:       rec.CorrectAnswer,
			TaxonomyID:          taxonomyID,
			CognitiveLearningID: cognitiveID,
			DifficultyID:        difficultyID,
			Marks:               rec.Marks,
			CreatedBy:           c.createdBy,
		}
		if err := tx.Create(question).Error; err != nil {
			// The duplicated-key sentinel is kept in the chain; Commit
			// decides whether it was the text index or a code collision.
			return fmt.Errorf("failed to create question: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return questionCode, nil
}

func (c *batchCommitter) getOrCreateBoard(tx *gorm.DB, name string) (uuid.UUID, error) {
	key := utils.NormalizeText(name)
	if id, ok := c.boards[key]; ok {
		return id, nil
	}

	var board models.Board
	err := tx.Where("organization_id = ? AND LOWER(name) = ?", c.owner.OrganizationID, key).
		First(&board).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		board = models.Board{
			Name:           name,
			OrganizationID: c.owner.OrganizationID,
			CreatedBy:      c.createdBy,
		}
		err = tx.Create(&board).Error
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve board %q: %w", name, err)
	}

	c.boards[key] = board.ID
	return board.ID, nil
}

func (c *batchCommitter) getOrCreateState(tx *gorm.DB, name string) (uuid.UUID, error) {
	key := utils.NormalizeText(name)
	if id, ok := c.states[key]; ok {
		return id, nil
	}

	var state models.State
	err := tx.Where("organization_id = ? AND LOWER(name) = ?", c.owner.OrganizationID, key).
		First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = models.State{
			Name:           name,
			OrganizationID: c.owner.OrganizationID,
			CreatedBy:      c.createdBy,
		}
		err = tx.Create(&state).Error
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve state %q: %w", name, err)
	}

	c.states[key] = state.ID
	return state.ID, nil
}

func (c *batchCommitter) getOrCreateMedium(tx *gorm.DB, name string) (uuid.UUID, error) {
	key := utils.NormalizeText(name)
	if id, ok := c.mediums[key]; ok {
		return id, nil
	}

	var medium models.Medium
	err := tx.Where("organization_id = ? AND LOWER(name) = ?", c.owner.OrganizationID, key).
		First(&medium).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		medium = models.Medium{
			Name:           name,
			OrganizationID: c.owner.OrganizationID,
			CreatedBy:      c.createdBy,
		}
		err = tx.Create(&medium).Error
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve medium %q: %w", name, err)
	}

	c.mediums[key] = medium.ID
	return medium.ID, nil
}

// getOrCreateSubject resolves the subject for the row's standard and medium.
// The subject name itself was already checked against the organization by
// the validator; a new (standard, medium) combination for a known name is
// created here.
func (c *batchCommitter) getOrCreateSubject(tx *gorm.DB, name, standard string, mediumID uuid.UUID) (uuid.UUID, error) {
	key := fmt.Sprintf("%s:%s:%s", utils.NormalizeText(name), standard, mediumID)
	if id, ok := c.subjects[key]; ok {
		return id, nil
	}

	var subject models.Subject
	err := tx.Where("organization_id = ? AND LOWER(name) = ? AND standard = ? AND medium_id = ?",
		c.owner.OrganizationID, utils.NormalizeText(name), standard, mediumID).
		First(&subject).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		subject = models.Subject{
			Name:           name,
			Standard:       standard,
			MediumID:       mediumID,
			OrganizationID: c.owner.OrganizationID,
			CreatedBy:      c.createdBy,
		}
		err = tx.Create(&subject).Error
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve subject %q: %w", name, err)
	}

	c.subjects[key] = subject.ID
	return subject.ID, nil
}

func (c *batchCommitter) lookupCognitive(tx *gorm.DB, name string) (uuid.UUID, error) {
	key := utils.NormalizeText(name)
	if id, ok := c.cognitive[key]; ok {
		return id, nil
	}

	var row models.CognitiveLearning
	err := tx.Where("organization_id = ? AND LOWER(name) = ?", c.owner.OrganizationID, key).
		First(&row).Error
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve cognitive learning %q: %w", name, err)
	}

	c.cognitive[key] = row.ID
	return row.ID, nil
}

func (c *batchCommitter) lookupDifficulty(tx *gorm.DB, name string) (uuid.UUID, error) {
	key := utils.NormalizeText(name)
	if id, ok := c.difficult[key]; ok {
		return id, nil
	}

	var row models.Difficulty
	err := tx.Where("organization_id = ? AND LOWER(name) = ?", c.owner.OrganizationID, key).
		First(&row).Error
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve difficulty %q: %w", name, err)
	}

	c.difficult[key] = row.ID
	return row.ID, nil
}

func (c *batchCommitter) getOrCreateTaxonomy(tx *gorm.DB, rec *services.NormalizedRecord, boardID, stateID, mediumID, subjectID uuid.UUID) (uuid.UUID, error) {
	chapterCode, err := c.codes.ChapterCode(rec.ChapterName)
	if err != nil {
		return uuid.Nil, err
	}
	topicCode, err := c.codes.TopicCode(chapterCode, rec.TopicName)
	if err != nil {
		return uuid.Nil, err
	}
	subTopicCode, err := c.codes.SubTopicCode(topicCode, rec.SubTopicName)
	if err != nil {
		return uuid.Nil, err
	}

	code := c.codes.TaxonomyCode(chapterCode, topicCode, subTopicCode, boardID, stateID, mediumID, subjectID, rec.Standard)
	if id, ok := c.taxos[code]; ok {
		return id, nil
	}

	var taxonomy models.Taxonomy
	err = tx.Where("organization_id = ? AND taxonomy_code = ?", c.owner.OrganizationID, code).
		First(&taxonomy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		taxonomy = models.Taxonomy{
			TaxonomyCode:   code,
			OrganizationID: c.owner.OrganizationID,
			BoardID:        boardID,
			StateID:        stateID,
			MediumID:       mediumID,
			SubjectID:      subjectID,
			Standard:       rec.Standard,
			ChapterName:    rec.ChapterName,
			ChapterCode:    chapterCode,
			TopicName:      rec.TopicName,
			TopicCode:      topicCode,
			SubTopicName:   rec.SubTopicName,
			SubTopicCode:   subTopicCode,
			CreatedBy:      c.createdBy,
		}
		err = tx.Create(&taxonomy).Error
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve taxonomy %q: %w", code, err)
	}

	c.taxos[code] = taxonomy.ID
	return taxonomy.ID, nil
}
