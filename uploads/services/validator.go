package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"question-bank-backend/db/models"
	"question-bank-backend/utils"

	"github.com/shopspring/decimal"
)

// ScopeLookup resolves organization-scoped references. Implemented by the
// question repository; a lookup error means the reference store itself is
// unavailable, not that the reference is missing.
type ScopeLookup interface {
	SubjectExists(ctx context.Context, owner models.OwnerContext, name string) (bool, error)
	CognitiveLearningExists(ctx context.Context, owner models.OwnerContext, name string) (bool, error)
	DifficultyExists(ctx context.Context, owner models.OwnerContext, name string) (bool, error)
}

// NormalizedRecord is a fully validated question row, typed and ready for
// the commit path.
type NormalizedRecord struct {
	QuestionText   string
	NormalizedText string

	AnswerOptionA string
	AnswerOptionB string
	AnswerOptionC string
	AnswerOptionD string
	CorrectAnswer string

	ChapterName  string
	TopicName    string
	SubTopicName string

	Medium   string
	Board    string
	State    string
	Standard string
	Subject  string

	CognitiveLearning string
	Difficulty        string

	Marks decimal.Decimal
}

// DuplicateTracker accumulates natural keys seen so far in one job. Owned by
// the job's worker, never shared across jobs.
type DuplicateTracker struct {
	firstSeen map[string]int
}

func NewDuplicateTracker() *DuplicateTracker {
	return &DuplicateTracker{firstSeen: make(map[string]int)}
}

// Check returns the row number of the first occurrence when the key was
// already seen, otherwise records the key against this row.
func (t *DuplicateTracker) Check(key string, rowNumber int) (int, bool) {
	if first, ok := t.firstSeen[key]; ok {
		return first, true
	}
	t.firstSeen[key] = rowNumber
	return 0, false
}

type Validator struct {
	schema *Schema
	scope  ScopeLookup
}

func NewValidator(schema *Schema, scope ScopeLookup) *Validator {
	return &Validator{schema: schema, scope: scope}
}

// ValidateRow applies the schema's rules to one row. All errors for the row
// are collected before returning; a non-nil error return means a collaborator
// failed and the job cannot continue.
func (v *Validator) ValidateRow(ctx context.Context, owner models.OwnerContext, rec RowRecord, seen *DuplicateTracker) (*NormalizedRecord, []models.FieldError, error) {
	var fieldErrors []models.FieldError
	failed := make(map[string]bool)

	addError := func(field, code, message string) {
		fieldErrors = append(fieldErrors, models.FieldError{Field: field, Code: code, Message: message})
		failed[field] = true
	}

	// Structural and value checks, per column in declaration order. A field
	// that fails a check skips its remaining checks.
	for _, col := range v.schema.Columns {
		value := rec.Get(col.Name)

		if value == "" {
			if col.Required {
				addError(col.Name, models.ErrCodeRequired, fmt.Sprintf("%s is required", col.Name))
			}
			continue
		}

		for _, rule := range v.schema.RulesFor(col.Name) {
			if failed[col.Name] {
				break
			}
			switch rule.Kind {
			case RuleType:
				if err := checkType(value, rule.Type); err != nil {
					addError(col.Name, models.ErrCodeInvalidType, fmt.Sprintf("%s %s", col.Name, err))
				}
			case RuleEnum:
				if !containsFold(rule.Allowed, value) {
					addError(col.Name, models.ErrCodeInvalidEnum,
						fmt.Sprintf("%s must be one of %s", col.Name, strings.Join(rule.Allowed, ", ")))
				}
			case RuleMaxLength:
				// Length caps count characters, not bytes, so non-Latin
				// scripts are not penalized.
				if utf8.RuneCountInString(value) > rule.MaxLength {
					addError(col.Name, models.ErrCodeMaxLength,
						fmt.Sprintf("%s is too long (maximum %d characters)", col.Name, rule.MaxLength))
				}
			}
		}
	}

	// Cross-field: the option column selected by correct_answer must hold a
	// value.
	for _, rule := range v.schema.Rules {
		if rule.Kind != RuleCrossField || failed[rule.SelectorField] {
			continue
		}
		selector := strings.ToUpper(rec.Get(rule.SelectorField))
		optionField := "answer_option_" + strings.ToLower(selector)
		if selector != "" && rec.Get(optionField) == "" {
			addError(rule.Field, models.ErrCodeCrossField,
				fmt.Sprintf("correct_answer %s points at an empty %s", selector, optionField))
		}
	}

	// Cross-row: duplicate natural key against rows already seen in this job.
	for _, rule := range v.schema.Rules {
		if rule.Kind != RuleCrossRowUnique || failed[rule.Field] {
			continue
		}
		key := utils.NormalizeText(rec.Get(rule.Field))
		if key == "" {
			continue
		}
		if first, dup := seen.Check(key, rec.RowNumber); dup {
			addError(rule.Field, models.ErrCodeDuplicateInFile,
				fmt.Sprintf("duplicate of row %d", first))
		}
	}

	// Scope references, resolved against the caller's organization.
	for _, rule := range v.schema.Rules {
		if rule.Kind != RuleScopeReference || failed[rule.Field] {
			continue
		}
		value := rec.Get(rule.Field)
		if value == "" {
			continue
		}
		exists, err := v.lookupScope(ctx, owner, rule.Scope, value)
		if err != nil {
			return nil, nil, fmt.Errorf("scope lookup for %s failed: %w", rule.Field, err)
		}
		if !exists {
			addError(rule.Field, models.ErrCodeScopeReference,
				fmt.Sprintf("%s %q does not exist in your organization", rule.Field, value))
		}
	}

	if len(fieldErrors) > 0 {
		return nil, fieldErrors, nil
	}

	normalized, err := v.bind(rec)
	if err != nil {
		return nil, nil, err
	}
	return normalized, nil, nil
}

func (v *Validator) lookupScope(ctx context.Context, owner models.OwnerContext, scope ScopeKind, value string) (bool, error) {
	switch scope {
	case ScopeSubject:
		return v.scope.SubjectExists(ctx, owner, value)
	case ScopeCognitiveLearning:
		return v.scope.CognitiveLearningExists(ctx, owner, value)
	case ScopeDifficulty:
		return v.scope.DifficultyExists(ctx, owner, value)
	}
	return false, fmt.Errorf("unknown scope kind %q", scope)
}

// bind converts a row that passed every rule into its typed form.
func (v *Validator) bind(rec RowRecord) (*NormalizedRecord, error) {
	marks := decimal.NewFromInt(1)
	if raw := rec.Get("marks"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("marks %q survived validation but failed to parse: %w", raw, err)
		}
		marks = parsed
	}

	text := rec.Get("question_text")
	return &NormalizedRecord{
		QuestionText:      text,
		NormalizedText:    utils.NormalizeText(text),
		AnswerOptionA:     rec.Get("answer_option_a"),
		AnswerOptionB:     rec.Get("answer_option_b"),
		AnswerOptionC:     rec.Get("answer_option_c"),
		AnswerOptionD:     rec.Get("answer_option_d"),
		CorrectAnswer:     strings.ToUpper(rec.Get("correct_answer")),
		ChapterName:       rec.Get("chapter_name"),
		TopicName:         rec.Get("topic_name"),
		SubTopicName:      rec.Get("subtopic_name"),
		Medium:            rec.Get("medium"),
		Board:             rec.Get("board"),
		State:             rec.Get("state"),
		Standard:          rec.Get("class"),
		Subject:           rec.Get("subject"),
		CognitiveLearning: rec.Get("cognitive_learning"),
		Difficulty:        rec.Get("difficulty"),
		Marks:             marks,
	}, nil
}

func checkType(value string, t FieldType) error {
	switch t {
	case FieldTypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("must be a number")
		}
	case FieldTypeDecimal:
		if _, err := decimal.NewFromString(value); err != nil {
			return fmt.Errorf("must be a decimal number")
		}
	}
	return nil
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}
