package services

// The schema registry declares the columns and validation rules for one
// uploadable entity kind. Rules are plain data interpreted by the validator,
// so the template generator, parser and validator all read the same source
// of truth.

type FieldType string

const (
	FieldTypeText         FieldType = "text"
	FieldTypeInt          FieldType = "int"
	FieldTypeDecimal      FieldType = "decimal"
	FieldTypeAnswerOption FieldType = "answer_option"
)

type RuleKind string

const (
	RuleRequired       RuleKind = "required"
	RuleType           RuleKind = "type"
	RuleEnum           RuleKind = "enum"
	RuleMaxLength      RuleKind = "max_length"
	RuleCrossField     RuleKind = "cross_field"
	RuleCrossRowUnique RuleKind = "cross_row_unique"
	RuleScopeReference RuleKind = "scope_reference"
)

// ScopeKind names an organization-scoped reference the validator resolves
// through its lookup collaborator.
type ScopeKind string

const (
	ScopeSubject           ScopeKind = "subject"
	ScopeCognitiveLearning ScopeKind = "cognitive_learning"
	ScopeDifficulty        ScopeKind = "difficulty"
)

// ValidationRule is a tagged variant; only the parameters for its kind are
// set.
type ValidationRule struct {
	Kind  RuleKind
	Field string

	Type      FieldType // RuleType
	Allowed   []string  // RuleEnum
	MaxLength int       // RuleMaxLength
	Scope     ScopeKind // RuleScopeReference

	// RuleCrossField: Field must name an option column selected by the
	// value of SelectorField, e.g. correct_answer "B" -> answer_option_b.
	SelectorField string
}

// ColumnSpec describes one spreadsheet column. Name is the normalized header
// used internally; Header is what the template prints.
type ColumnSpec struct {
	Name     string
	Header   string
	Required bool
	Sample   string
	Note     string
}

// Schema binds an entity kind to its columns and rules.
type Schema struct {
	EntityKind string
	Columns    []ColumnSpec
	Rules      []ValidationRule
}

// Column returns the spec for the given normalized name.
func (s *Schema) Column(name string) (ColumnSpec, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// RequiredColumns lists the normalized names of all required columns in
// declaration order.
func (s *Schema) RequiredColumns() []string {
	var out []string
	for _, c := range s.Columns {
		if c.Required {
			out = append(out, c.Name)
		}
	}
	return out
}

// RulesFor returns the field-level rules for one column, in evaluation order.
func (s *Schema) RulesFor(field string) []ValidationRule {
	var out []ValidationRule
	for _, r := range s.Rules {
		if r.Field == field {
			out = append(out, r)
		}
	}
	return out
}

var answerOptions = []string{"A", "B", "C", "D"}

// QuestionSchema is the registry entry for multiple-choice questions.
func QuestionSchema() *Schema {
	return &Schema{
		EntityKind: "question",
		Columns: []ColumnSpec{
			{Name: "question_text", Header: "question_text", Required: true, Sample: "What is the boiling point of water at sea level?"},
			{Name: "answer_option_a", Header: "answer_option_a", Required: true, Sample: "90 degrees Celsius"},
			{Name: "answer_option_b", Header: "answer_option_b", Required: true, Sample: "100 degrees Celsius"},
			{Name: "answer_option_c", Header: "answer_option_c", Required: true, Sample: "110 degrees Celsius"},
			{Name: "answer_option_d", Header: "answer_option_d", Required: true, Sample: "120 degrees Celsius"},
			{Name: "correct_answer", Header: "correct_answer", Required: true, Sample: "B", Note: "One of A, B, C, D"},
			{Name: "chapter_name", Header: "chapter_name", Required: true, Sample: "States of Matter"},
			{Name: "topic_name", Header: "topic_name", Required: true, Sample: "Phase Transitions"},
			{Name: "subtopic_name", Header: "subtopic_name", Required: true, Sample: "Boiling and Evaporation"},
			{Name: "medium", Header: "medium", Required: true, Sample: "English"},
			{Name: "board", Header: "board", Required: true, Sample: "CBSE"},
			{Name: "state", Header: "state", Required: true, Sample: "Maharashtra"},
			{Name: "class", Header: "class", Required: true, Sample: "8", Note: "Numeric grade standard"},
			{Name: "subject", Header: "subject", Required: true, Sample: "Science", Note: "Must already exist in your organization"},
			{Name: "cognitive_learning", Header: "cognitive_learning", Required: true, Sample: "Understanding", Note: "Must already exist in your organization"},
			{Name: "difficulty", Header: "difficulty", Required: true, Sample: "Easy", Note: "Must already exist in your organization"},
			{Name: "marks", Header: "marks", Required: false, Sample: "1", Note: "Optional, defaults to 1"},
		},
		Rules: []ValidationRule{
			{Kind: RuleMaxLength, Field: "question_text", MaxLength: 1000},
			{Kind: RuleMaxLength, Field: "answer_option_a", MaxLength: 200},
			{Kind: RuleMaxLength, Field: "answer_option_b", MaxLength: 200},
			{Kind: RuleMaxLength, Field: "answer_option_c", MaxLength: 200},
			{Kind: RuleMaxLength, Field: "answer_option_d", MaxLength: 200},
			{Kind: RuleEnum, Field: "correct_answer", Allowed: answerOptions},
			{Kind: RuleType, Field: "class", Type: FieldTypeInt},
			{Kind: RuleType, Field: "marks", Type: FieldTypeDecimal},
			{Kind: RuleCrossField, Field: "correct_answer", SelectorField: "correct_answer"},
			{Kind: RuleCrossRowUnique, Field: "question_text"},
			{Kind: RuleScopeReference, Field: "subject", Scope: ScopeSubject},
			{Kind: RuleScopeReference, Field: "cognitive_learning", Scope: ScopeCognitiveLearning},
			{Kind: RuleScopeReference, Field: "difficulty", Scope: ScopeDifficulty},
		},
	}
}
