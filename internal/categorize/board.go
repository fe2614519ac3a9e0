// Package categorize implements the item-to-bucket assignment used while a
// respondent fills out a categorize question.
package categorize

import (
	"errors"
	"fmt"

	"github.com/stemsi/formcraft/internal/model"
)

var (
	ErrUnknownItem     = errors.New("unknown item")
	ErrUnknownCategory = errors.New("unknown category")
)

// Unassigned is the location reported for items that sit in the pool.
const Unassigned = ""

// EmitFunc receives the full bucket mapping after every change.
type EmitFunc func(questionID string, answer model.CategorizeAnswer)

// Board tracks where every item of one categorize question currently sits.
// An item is always in exactly one place: the unassigned pool or a single bucket.
// Board is not safe for concurrent use; the owning session serialises access.
type Board struct {
	questionID string
	categories []string
	items      []string
	known      map[string]bool
	unassigned []string
	buckets    map[string][]string
	emit       EmitFunc
}

// NewBoard places every item in the unassigned pool, in item order, and creates
// one empty bucket per category. Duplicate item texts and category names collapse
// to a single entry since items are tracked by text.
func NewBoard(questionID string, q *model.Categorize, emit EmitFunc) *Board {
	if emit == nil {
		emit = func(string, model.CategorizeAnswer) {}
	}
	b := &Board{
		questionID: questionID,
		known:      make(map[string]bool, len(q.Items)),
		buckets:    make(map[string][]string, len(q.Categories)),
		emit:       emit,
	}
	for _, c := range q.Categories {
		if _, ok := b.buckets[c]; ok {
			continue
		}
		b.categories = append(b.categories, c)
		b.buckets[c] = []string{}
	}
	for _, item := range q.Items {
		if b.known[item.Text] {
			continue
		}
		b.known[item.Text] = true
		b.items = append(b.items, item.Text)
		b.unassigned = append(b.unassigned, item.Text)
	}
	return b
}

// QuestionID returns the id of the question this board belongs to.
func (b *Board) QuestionID() string { return b.questionID }

// Assign moves item into category, wherever it was before. Assigning an item to
// the bucket it already occupies leaves it there once.
func (b *Board) Assign(item, category string) error {
	if !b.known[item] {
		return fmt.Errorf("%w: %q", ErrUnknownItem, item)
	}
	if _, ok := b.buckets[category]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}

	b.unassigned = without(b.unassigned, item)
	b.removeFromBuckets(item)
	b.buckets[category] = append(b.buckets[category], item)

	b.emit(b.questionID, b.Buckets())
	return nil
}

// Unassign returns item to the pool.
func (b *Board) Unassign(item string) error {
	if !b.known[item] {
		return fmt.Errorf("%w: %q", ErrUnknownItem, item)
	}

	b.removeFromBuckets(item)
	if !contains(b.unassigned, item) {
		b.unassigned = append(b.unassigned, item)
	}

	b.emit(b.questionID, b.Buckets())
	return nil
}

// Restore replaces the board state with a previously emitted answer. Entries for
// unknown items or categories are dropped; items missing from the answer go back
// to the pool in item order. Restore does not emit.
func (b *Board) Restore(answer model.CategorizeAnswer) {
	placed := make(map[string]bool, len(b.known))
	for _, c := range b.categories {
		bucket := []string{}
		for _, item := range answer[c] {
			if b.known[item] && !placed[item] {
				placed[item] = true
				bucket = append(bucket, item)
			}
		}
		b.buckets[c] = bucket
	}

	pool := b.unassigned[:0:0]
	for _, item := range b.items {
		if !placed[item] {
			pool = append(pool, item)
		}
	}
	b.unassigned = pool
}

// Unassigned returns the items still in the pool, in pool order.
func (b *Board) Unassigned() []string {
	out := make([]string, len(b.unassigned))
	copy(out, b.unassigned)
	return out
}

// Buckets returns a copy of every bucket, empty ones included.
func (b *Board) Buckets() model.CategorizeAnswer {
	out := make(model.CategorizeAnswer, len(b.buckets))
	for c, items := range b.buckets {
		cp := make([]string, len(items))
		copy(cp, items)
		out[c] = cp
	}
	return out
}

// Progress counts items placed in a bucket against all items.
func (b *Board) Progress() model.Progress {
	return model.Progress{Answered: len(b.items) - len(b.unassigned), Total: len(b.items)}
}

// Categories returns the bucket names in question order.
func (b *Board) Categories() []string {
	out := make([]string, len(b.categories))
	copy(out, b.categories)
	return out
}

// Locate returns the bucket holding item, or Unassigned when it is in the pool.
func (b *Board) Locate(item string) (string, error) {
	if !b.known[item] {
		return "", fmt.Errorf("%w: %q", ErrUnknownItem, item)
	}
	for _, c := range b.categories {
		if contains(b.buckets[c], item) {
			return c, nil
		}
	}
	return Unassigned, nil
}

func (b *Board) removeFromBuckets(item string) {
	for c, items := range b.buckets {
		if contains(items, item) {
			b.buckets[c] = without(items, item)
		}
	}
}

func without(items []string, item string) []string {
	out := items[:0:0]
	for _, it := range items {
		if it != item {
			out = append(out, it)
		}
	}
	return out
}

func contains(items []string, item string) bool {
	for _, it := range items {
		if it == item {
			return true
		}
	}
	return false
}
