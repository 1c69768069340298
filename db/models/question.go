package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Taxonomy pins a question to its curriculum position: board, state, medium,
// standard, subject and the chapter/topic/subtopic names with their generated
// codes. One taxonomy row is shared by every question at the same position.
type Taxonomy struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	TaxonomyCode   string    `gorm:"not null;uniqueIndex:idx_taxonomies_org_code" json:"taxonomy_code"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_taxonomies_org_code" json:"organization_id"`

	BoardID   uuid.UUID `gorm:"type:uuid;not null" json:"board_id"`
	StateID   uuid.UUID `gorm:"type:uuid;not null" json:"state_id"`
	MediumID  uuid.UUID `gorm:"type:uuid;not null" json:"medium_id"`
	SubjectID uuid.UUID `gorm:"type:uuid;not null" json:"subject_id"`
	Standard  string    `gorm:"not null" json:"standard"`

	ChapterName  string `gorm:"not null" json:"chapter_name"`
	ChapterCode  string `gorm:"not null" json:"chapter_code"`
	TopicName    string `gorm:"not null" json:"topic_name"`
	TopicCode    string `gorm:"not null" json:"topic_code"`
	SubTopicName string `gorm:"not null" json:"sub_topic_name"`
	SubTopicCode string `gorm:"not null" json:"sub_topic_code"`

	CreatedBy string    `gorm:"not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Board   *Board   `gorm:"foreignKey:BoardID" json:"board,omitempty"`
	State   *State   `gorm:"foreignKey:StateID" json:"state,omitempty"`
	Medium  *Medium  `gorm:"foreignKey:MediumID" json:"medium,omitempty"`
	Subject *Subject `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
}

func (t *Taxonomy) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Question is one multiple-choice question. NormalizedText carries the
// lowercased, whitespace-collapsed question text and is unique per
// organization, which is what rejects duplicate uploads.
type Question struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	QuestionCode   string    `gorm:"not null;uniqueIndex:idx_questions_org_code" json:"question_code"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_questions_org_code;uniqueIndex:idx_questions_org_text" json:"organization_id"`

	QuestionText   string `gorm:"type:text;not null" json:"question_text"`
	NormalizedText string `gorm:"type:text;not null;uniqueIndex:idx_questions_org_text" json:"-"`

	AnswerOptionA string `gorm:"type:text;not null" json:"answer_option_a"`
	AnswerOptionB string `gorm:"type:text;not null" json:"answer_option_b"`
	AnswerOptionC string `gorm:"type:text;not null" json:"answer_option_c"`
	AnswerOptionD string `gorm:"type:text;not null" json:"answer_option_d"`
	CorrectAnswer string `gorm:"type:varchar(1);not null" json:"correct_answer"`

	TaxonomyID          uuid.UUID       `gorm:"type:uuid;not null" json:"taxonomy_id"`
	CognitiveLearningID uuid.UUID       `gorm:"type:uuid;not null" json:"cognitive_learning_id"`
	DifficultyID        uuid.UUID       `gorm:"type:uuid;not null" json:"difficulty_id"`
	Marks               decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"marks"`

	CreatedBy string    `gorm:"not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Taxonomy          *Taxonomy          `gorm:"foreignKey:TaxonomyID" json:"taxonomy,omitempty"`
	CognitiveLearning *CognitiveLearning `gorm:"foreignKey:CognitiveLearningID" json:"cognitive_learning,omitempty"`
	Difficulty        *Difficulty        `gorm:"foreignKey:DifficultyID" json:"difficulty,omitempty"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
