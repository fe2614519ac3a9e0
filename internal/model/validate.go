package model

import (
	"fmt"
	"strings"
)

// IssueCode classifies a structural anomaly in a draft form.
type IssueCode string

const (
	IssueDuplicateQuestionID IssueCode = "DUPLICATE_QUESTION_ID"
	IssueNoCategories        IssueCode = "NO_CATEGORIES"
	IssueDanglingCategory    IssueCode = "DANGLING_CATEGORY"
	IssueBlankCountMismatch  IssueCode = "BLANK_COUNT_MISMATCH"
	IssueTooFewOptions       IssueCode = "TOO_FEW_OPTIONS"
)

// Issue describes one anomaly. Issues are reported, never enforced: drafts stay editable.
type Issue struct {
	QuestionID string    `json:"question_id,omitempty"`
	Code       IssueCode `json:"code"`
	Detail     string    `json:"detail"`
}

// clozeMarker is repeated here so the model has no dependency on the cloze package.
const clozeMarker = "___"

// Validate lists every structural anomaly of f. An empty result means the
// document satisfies all of its invariants.
func (f *Form) Validate() []Issue {
	var issues []Issue
	seen := make(map[string]bool, len(f.Questions))

	for _, q := range f.Questions {
		if seen[q.ID] {
			issues = append(issues, Issue{
				QuestionID: q.ID,
				Code:       IssueDuplicateQuestionID,
				Detail:     "question id is used more than once",
			})
		}
		seen[q.ID] = true

		if q.Body == nil {
			continue
		}
		issues = append(issues, DispatchBody(q.Body,
			func(c *Categorize) []Issue { return categorizeIssues(q.ID, c) },
			func(c *Cloze) []Issue { return clozeIssues(q.ID, c) },
			func(c *Comprehension) []Issue { return comprehensionIssues(q.ID, c) },
		)...)
	}
	return issues
}

func categorizeIssues(id string, c *Categorize) []Issue {
	var issues []Issue
	if len(c.Categories) == 0 {
		issues = append(issues, Issue{QuestionID: id, Code: IssueNoCategories, Detail: "question has no categories"})
	}
	for _, item := range c.Items {
		if !c.HasCategory(item.Category) {
			issues = append(issues, Issue{
				QuestionID: id,
				Code:       IssueDanglingCategory,
				Detail:     fmt.Sprintf("item %q references missing category %q", item.Text, item.Category),
			})
		}
	}
	return issues
}

func clozeIssues(id string, c *Cloze) []Issue {
	markers := strings.Count(c.Sentence, clozeMarker)
	if markers == len(c.Blanks) {
		return nil
	}
	return []Issue{{
		QuestionID: id,
		Code:       IssueBlankCountMismatch,
		Detail:     fmt.Sprintf("sentence has %d markers but %d blanks are defined", markers, len(c.Blanks)),
	}}
}

func comprehensionIssues(id string, c *Comprehension) []Issue {
	var issues []Issue
	for _, sq := range c.Questions {
		if sq.Type == SubQuestionMultipleChoice && len(sq.Options) < 2 {
			issues = append(issues, Issue{
				QuestionID: id,
				Code:       IssueTooFewOptions,
				Detail:     fmt.Sprintf("sub-question %s needs at least two options", sq.ID),
			})
		}
	}
	return issues
}
