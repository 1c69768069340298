package services

import (
	"fmt"
	"strings"
	"sync"

	"question-bank-backend/db/models"
	"question-bank-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CodeGenerator mints the human-readable codes attached to committed
// questions and their taxonomy rows. Codes are sequential per organization:
// questions are Q1, Q2, ..., chapters C000, C001, ..., topics T000, ... and
// subtopics S000, .... One generator instance is shared per upload job so the
// in-memory caches stay coherent across rows.
type CodeGenerator struct {
	db    *gorm.DB
	orgID uuid.UUID

	mu            sync.Mutex
	chapterCodes  map[string]string
	topicCodes    map[string]string
	subTopicCodes map[string]string

	nextChapter  int
	nextTopic    int
	nextSubTopic int

	nextQuestionID int
	questionSeeded bool
}

func NewCodeGenerator(db *gorm.DB, orgID uuid.UUID) *CodeGenerator {
	return &CodeGenerator{
		db:            db,
		orgID:         orgID,
		chapterCodes:  make(map[string]string),
		topicCodes:    make(map[string]string),
		subTopicCodes: make(map[string]string),
		nextChapter:   -1,
		nextTopic:     -1,
		nextSubTopic:  -1,
	}
}

// Resync drops every cached sequence and minted code so the next mint
// reseeds from the committed maxima. Called after a unique-index collision,
// which means a concurrent job in the same organization claimed codes this
// generator thought were free.
func (g *CodeGenerator) Resync() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.chapterCodes = make(map[string]string)
	g.topicCodes = make(map[string]string)
	g.subTopicCodes = make(map[string]string)
	g.nextChapter = -1
	g.nextTopic = -1
	g.nextSubTopic = -1
	g.questionSeeded = false
}

// NextQuestionCode returns the next sequential question code, Q{n}.
func (g *CodeGenerator) NextQuestionCode() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.questionSeeded {
		var maxID *int
		err := g.db.Raw(
			"SELECT MAX(CAST(substr(question_code, 2) AS INTEGER)) FROM questions WHERE organization_id = ?",
			g.orgID,
		).Scan(&maxID).Error
		if err != nil {
			return "", fmt.Errorf("failed to seed question code sequence: %w", err)
		}
		if maxID != nil {
			g.nextQuestionID = *maxID
		}
		g.questionSeeded = true
	}

	g.nextQuestionID++
	return fmt.Sprintf("Q%d", g.nextQuestionID), nil
}

// ChapterCode returns the existing code for the chapter name inside the
// organization, or mints the next C{nnn} code.
func (g *CodeGenerator) ChapterCode(chapterName string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := utils.NormalizeText(chapterName)
	if code, ok := g.chapterCodes[key]; ok {
		return code, nil
	}

	var existing string
	err := g.db.Model(&models.Taxonomy{}).
		Select("chapter_code").
		Where("organization_id = ? AND LOWER(chapter_name) = ?", g.orgID, key).
		Limit(1).
		Scan(&existing).Error
	if err != nil {
		return "", fmt.Errorf("failed to look up chapter code: %w", err)
	}
	if existing != "" {
		g.chapterCodes[key] = existing
		return existing, nil
	}

	if g.nextChapter < 0 {
		next, err := g.maxCodeNumber("chapter_code")
		if err != nil {
			return "", err
		}
		g.nextChapter = next
	}

	code := fmt.Sprintf("C%03d", g.nextChapter)
	g.nextChapter++
	g.chapterCodes[key] = code
	return code, nil
}

// TopicCode returns the code for the topic within its chapter, minting the
// next T{nnn} code when the pair is new.
func (g *CodeGenerator) TopicCode(chapterCode, topicName string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := chapterCode + ":" + utils.NormalizeText(topicName)
	if code, ok := g.topicCodes[key]; ok {
		return code, nil
	}

	var existing string
	err := g.db.Model(&models.Taxonomy{}).
		Select("topic_code").
		Where("organization_id = ? AND chapter_code = ? AND LOWER(topic_name) = ?",
			g.orgID, chapterCode, utils.NormalizeText(topicName)).
		Limit(1).
		Scan(&existing).Error
	if err != nil {
		return "", fmt.Errorf("failed to look up topic code: %w", err)
	}
	if existing != "" {
		g.topicCodes[key] = existing
		return existing, nil
	}

	if g.nextTopic < 0 {
		next, err := g.maxCodeNumber("topic_code")
		if err != nil {
			return "", err
		}
		g.nextTopic = next
	}

	code := fmt.Sprintf("T%03d", g.nextTopic)
	g.nextTopic++
	g.topicCodes[key] = code
	return code, nil
}

// SubTopicCode returns the code for the subtopic within its topic, minting
// the next S{nnn} code when the pair is new.
func (g *CodeGenerator) SubTopicCode(topicCode, subTopicName string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := topicCode + ":" + utils.NormalizeText(subTopicName)
	if code, ok := g.subTopicCodes[key]; ok {
		return code, nil
	}

	var existing string
	err := g.db.Model(&models.Taxonomy{}).
		Select("sub_topic_code").
		Where("organization_id = ? AND topic_code = ? AND LOWER(sub_topic_name) = ?",
			g.orgID, topicCode, utils.NormalizeText(subTopicName)).
		Limit(1).
		Scan(&existing).Error
	if err != nil {
		return "", fmt.Errorf("failed to look up subtopic code: %w", err)
	}
	if existing != "" {
		g.subTopicCodes[key] = existing
		return existing, nil
	}

	if g.nextSubTopic < 0 {
		next, err := g.maxCodeNumber("sub_topic_code")
		if err != nil {
			return "", err
		}
		g.nextSubTopic = next
	}

	code := fmt.Sprintf("S%03d", g.nextSubTopic)
	g.nextSubTopic++
	g.subTopicCodes[key] = code
	return code, nil
}

// TaxonomyCode concatenates the hierarchy codes with the curriculum context
// so one code identifies one curriculum position.
func (g *CodeGenerator) TaxonomyCode(chapterCode, topicCode, subTopicCode string, boardID, stateID, mediumID, subjectID uuid.UUID, standard string) string {
	var b strings.Builder
	b.WriteString("TAX")
	b.WriteString(chapterCode)
	b.WriteString(topicCode)
	b.WriteString(subTopicCode)
	fmt.Fprintf(&b, "-B%s-S%s-M%s-STD%s-S%s", boardID, stateID, mediumID, standard, subjectID)
	return b.String()
}

func (g *CodeGenerator) maxCodeNumber(column string) (int, error) {
	var maxNum *int
	query := fmt.Sprintf(
		"SELECT MAX(CAST(substr(%s, 2) AS INTEGER)) FROM taxonomies WHERE organization_id = ?",
		column,
	)
	if err := g.db.Raw(query, g.orgID).Scan(&maxNum).Error; err != nil {
		return 0, fmt.Errorf("failed to seed %s sequence: %w", column, err)
	}
	if maxNum == nil {
		return 0, nil
	}
	return *maxNum + 1, nil
}
