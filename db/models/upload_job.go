package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobStatus string

const (
	JobStatusQueued              JobStatus = "queued"
	JobStatusRunning             JobStatus = "running"
	JobStatusCompleted           JobStatus = "completed"
	JobStatusCompletedWithErrors JobStatus = "completed_with_errors"
	JobStatusFailed              JobStatus = "failed"
	JobStatusCancelled           JobStatus = "cancelled"
)

// IsTerminal reports whether the job can no longer change state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// UploadJob tracks one bulk question upload from submission to its terminal
// state. Counters are updated after every row so that any snapshot satisfies
// ProcessedRows == SucceededRows + FailedRows.
type UploadJob struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	Filename       string    `gorm:"not null" json:"filename"`
	Status         JobStatus `gorm:"type:varchar(30);not null;default:'queued';index" json:"status"`
	UploadedBy     string    `gorm:"not null;index" json:"uploaded_by"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`

	TotalRows     int `gorm:"default:0" json:"total_rows"`
	ProcessedRows int `gorm:"default:0" json:"processed_rows"`
	SucceededRows int `gorm:"default:0" json:"succeeded_rows"`
	FailedRows    int `gorm:"default:0" json:"failed_rows"`

	SourceFileRef     *string        `json:"source_file_ref,omitempty"`
	ResultArtifactRef *string        `json:"result_artifact_ref,omitempty"`
	ResultWarning     *string        `json:"result_warning,omitempty"`
	ErrorSummary      *string        `json:"error_summary,omitempty"`
	ErrorDetails      datatypes.JSON `json:"error_details,omitempty"`

	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (j *UploadJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

type RowResult string

const (
	RowResultSuccess         RowResult = "success"
	RowResultValidationError RowResult = "validation_error"
	RowResultConflict        RowResult = "conflict"
	RowResultSkipped         RowResult = "skipped"
)

// Validation error codes recorded against individual cells.
const (
	ErrCodeRequired        = "required"
	ErrCodeInvalidType     = "invalid_type"
	ErrCodeInvalidEnum     = "invalid_enum"
	ErrCodeMaxLength       = "max_length"
	ErrCodeCrossField      = "cross_field"
	ErrCodeDuplicateInFile  = "duplicate_in_file"
	ErrCodeDuplicateInStore = "duplicate_in_store"
	ErrCodeScopeReference   = "scope_reference"
)

// FieldError describes one validation failure on one column of a row.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RowOutcome records what happened to a single spreadsheet row. Outcomes are
// appended in strictly increasing row order and never rewritten.
type RowOutcome struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	JobID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_row_outcomes_job_row" json:"job_id"`
	RowNumber int       `gorm:"not null;uniqueIndex:idx_row_outcomes_job_row" json:"row_number"`
	Result    RowResult `gorm:"type:varchar(20);not null" json:"result"`

	Errors             datatypes.JSON `json:"errors,omitempty"`
	CommittedEntityRef *string        `json:"committed_entity_ref,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Job *UploadJob `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"-"`
}

func (r *RowOutcome) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
