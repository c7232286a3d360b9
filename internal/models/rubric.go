package models

import "encoding/json"

// Rubric is the typed form of the assignment rubric document.
type Rubric struct {
	Questions []Question `json:"questions" validate:"required,min=1,dive"`
}

// Question is one gradable item with its comment presets and optional
// workbook checks.
type Question struct {
	ID             string          `json:"question_id" validate:"required"`
	Title          string          `json:"title" validate:"required"`
	MaxPoints      float64         `json:"max_points" validate:"gte=0"`
	Description    string          `json:"description,omitempty"`
	CommentPresets []CommentPreset `json:"comment_presets,omitempty" validate:"dive"`
	Checks         []WorkbookCheck `json:"checks,omitempty" validate:"dive"`
}

// CommentPreset is a reusable grading comment, optionally tied to a deduction.
type CommentPreset struct {
	Label     string   `json:"label" validate:"required"`
	Text      string   `json:"text" validate:"required"`
	Deduction *float64 `json:"deduction,omitempty"`
}

// Workbook check kinds evaluated against an extracted formula map.
const (
	CheckRangeHasFormulas  = "range_must_have_formulas"
	CheckRangeNotHardcoded = "range_not_hardcoded"
	CheckMustUseFunctions  = "must_use_functions"
	CheckMustHavePivot     = "must_have_pivot"
)

// WorkbookCheck is a rubric-defined structural assertion over a spreadsheet.
// Sheet is optional; an empty sheet targets the first sheet of the workbook.
type WorkbookCheck struct {
	Type      string   `json:"type" validate:"required,oneof=range_must_have_formulas range_not_hardcoded must_use_functions must_have_pivot"`
	Sheet     string   `json:"sheet,omitempty"`
	Range     string   `json:"range,omitempty"`
	Functions []string `json:"functions,omitempty"`
}

// ParseRubric decodes a stored rubric document.
func ParseRubric(raw []byte) (Rubric, error) {
	var rubric Rubric
	if len(raw) == 0 {
		return rubric, nil
	}
	if err := json.Unmarshal(raw, &rubric); err != nil {
		return Rubric{}, err
	}
	return rubric, nil
}

// QuestionByID looks up a question in the rubric tree.
func (r Rubric) QuestionByID(id string) (Question, bool) {
	for _, q := range r.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// MaxTotal is the sum of all question maxima.
func (r Rubric) MaxTotal() float64 {
	var total float64
	for _, q := range r.Questions {
		total += q.MaxPoints
	}
	return total
}

// Checks collects every workbook check in rubric order, keyed by question.
func (r Rubric) AllChecks() []WorkbookCheck {
	var checks []WorkbookCheck
	for _, q := range r.Questions {
		checks = append(checks, q.Checks...)
	}
	return checks
}
