package categorize

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/stemsi/formcraft/internal/model"
)

func fruitVeg() *model.Categorize {
	return &model.Categorize{
		Categories: []string{"Fruit", "Veg"},
		Items: []model.CategorizeItem{
			{ID: "i1", Text: "Apple", Category: "Fruit"},
			{ID: "i2", Text: "Carrot", Category: "Veg"},
		},
	}
}

// occurrences counts how often item appears across the pool and every bucket.
func occurrences(b *Board, item string) int {
	n := 0
	for _, it := range b.Unassigned() {
		if it == item {
			n++
		}
	}
	for _, items := range b.Buckets() {
		for _, it := range items {
			if it == item {
				n++
			}
		}
	}
	return n
}

func TestNewBoard(t *testing.T) {
	b := NewBoard("q1", fruitVeg(), nil)

	if got := b.Unassigned(); !reflect.DeepEqual(got, []string{"Apple", "Carrot"}) {
		t.Errorf("unassigned = %v", got)
	}
	want := model.CategorizeAnswer{"Fruit": {}, "Veg": {}}
	if got := b.Buckets(); !reflect.DeepEqual(got, want) {
		t.Errorf("buckets = %v, want %v", got, want)
	}
}

func TestAssignScenario(t *testing.T) {
	var emitted []model.CategorizeAnswer
	b := NewBoard("q1", fruitVeg(), func(qid string, a model.CategorizeAnswer) {
		if qid != "q1" {
			t.Errorf("emitted for %q", qid)
		}
		emitted = append(emitted, a)
	})

	if err := b.Assign("Apple", "Veg"); err != nil {
		t.Fatal(err)
	}

	want := model.CategorizeAnswer{"Fruit": {}, "Veg": {"Apple"}}
	if got := b.Buckets(); !reflect.DeepEqual(got, want) {
		t.Errorf("buckets = %v, want %v", got, want)
	}
	if got := b.Unassigned(); !reflect.DeepEqual(got, []string{"Carrot"}) {
		t.Errorf("unassigned = %v, want [Carrot]", got)
	}
	if len(emitted) != 1 || !reflect.DeepEqual(emitted[0], want) {
		t.Errorf("emitted = %v", emitted)
	}
}

func TestAssignIsIdempotent(t *testing.T) {
	b := NewBoard("q1", fruitVeg(), nil)
	b.Assign("Apple", "Fruit")
	b.Assign("Apple", "Fruit")

	if got := b.Buckets()["Fruit"]; !reflect.DeepEqual(got, []string{"Apple"}) {
		t.Errorf("Fruit = %v, want [Apple]", got)
	}
}

func TestMoveBetweenBuckets(t *testing.T) {
	b := NewBoard("q1", fruitVeg(), nil)
	b.Assign("Apple", "Fruit")
	b.Assign("Apple", "Veg")

	if loc, _ := b.Locate("Apple"); loc != "Veg" {
		t.Errorf("Apple in %q, want Veg", loc)
	}
	if got := b.Buckets()["Fruit"]; len(got) != 0 {
		t.Errorf("Fruit = %v, want empty", got)
	}
}

func TestUnassign(t *testing.T) {
	var emitted model.CategorizeAnswer
	b := NewBoard("q1", fruitVeg(), func(_ string, a model.CategorizeAnswer) { emitted = a })
	b.Assign("Apple", "Fruit")

	if err := b.Unassign("Apple"); err != nil {
		t.Fatal(err)
	}
	if got := b.Unassigned(); !reflect.DeepEqual(got, []string{"Carrot", "Apple"}) {
		t.Errorf("unassigned = %v", got)
	}
	if !reflect.DeepEqual(emitted, model.CategorizeAnswer{"Fruit": {}, "Veg": {}}) {
		t.Errorf("emitted = %v", emitted)
	}

	// Unassigning an item already in the pool keeps a single entry.
	b.Unassign("Apple")
	if occurrences(b, "Apple") != 1 {
		t.Errorf("Apple appears %d times", occurrences(b, "Apple"))
	}
}

func TestUnknownReferencesDoNotMutate(t *testing.T) {
	tests := []struct {
		name string
		call func(b *Board) error
		want error
	}{
		{"assign unknown item", func(b *Board) error { return b.Assign("Banana", "Fruit") }, ErrUnknownItem},
		{"assign stale category", func(b *Board) error { return b.Assign("Apple", "Grain") }, ErrUnknownCategory},
		{"unassign unknown item", func(b *Board) error { return b.Unassign("Banana") }, ErrUnknownItem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			b := NewBoard("q1", fruitVeg(), func(string, model.CategorizeAnswer) { calls++ })
			before := b.Buckets()

			if err := tt.call(b); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !reflect.DeepEqual(b.Buckets(), before) || calls != 0 {
				t.Error("board changed on a rejected call")
			}
		})
	}
}

func TestExclusivityUnderRandomCalls(t *testing.T) {
	q := &model.Categorize{
		Categories: []string{"A", "B", "C"},
		Items: []model.CategorizeItem{
			{ID: "1", Text: "x", Category: "A"},
			{ID: "2", Text: "y", Category: "B"},
			{ID: "3", Text: "z", Category: "C"},
		},
	}
	items := []string{"x", "y", "z"}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 50; run++ {
		b := NewBoard("q", q, nil)
		for step := 0; step < 200; step++ {
			item := items[rng.Intn(len(items))]
			if rng.Intn(3) == 0 {
				b.Unassign(item)
			} else {
				b.Assign(item, q.Categories[rng.Intn(len(q.Categories))])
			}
			for _, it := range items {
				if n := occurrences(b, it); n != 1 {
					t.Fatalf("run %d step %d: %q appears %d times", run, step, it, n)
				}
			}
		}
	}
}

func TestRestore(t *testing.T) {
	b := NewBoard("q1", fruitVeg(), nil)
	b.Assign("Carrot", "Fruit")

	b.Restore(model.CategorizeAnswer{
		"Veg":   {"Carrot", "Ghost"},
		"Grain": {"Apple"},
	})

	want := model.CategorizeAnswer{"Fruit": {}, "Veg": {"Carrot"}}
	if got := b.Buckets(); !reflect.DeepEqual(got, want) {
		t.Errorf("buckets = %v, want %v", got, want)
	}
	if got := b.Unassigned(); !reflect.DeepEqual(got, []string{"Apple"}) {
		t.Errorf("unassigned = %v, want [Apple]", got)
	}
}

func TestDuplicateTextsCollapse(t *testing.T) {
	q := &model.Categorize{
		Categories: []string{"A", "A", "B"},
		Items: []model.CategorizeItem{
			{ID: "1", Text: "same", Category: "A"},
			{ID: "2", Text: "same", Category: "B"},
		},
	}
	b := NewBoard("q", q, nil)

	if got := b.Categories(); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("categories = %v", got)
	}
	if got := b.Unassigned(); !reflect.DeepEqual(got, []string{"same"}) {
		t.Errorf("unassigned = %v", got)
	}
}
