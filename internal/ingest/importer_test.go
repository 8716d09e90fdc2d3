package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aulaviva/quizengine/internal/bank"
	"github.com/aulaviva/quizengine/internal/model"
)

// failingBank wraps a Memory catalog and rejects questions whose text contains
// a trigger word, to exercise per-item failure handling.
type failingBank struct {
	*bank.Memory
	trigger string
}

func (f *failingBank) Create(ctx context.Context, q model.QuizQuestion) error {
	if strings.Contains(q.Text, f.trigger) {
		return errors.New("storage rejected question")
	}
	return f.Memory.Create(ctx, q)
}

func (f *failingBank) CreateMany(ctx context.Context, qs []model.QuizQuestion) bank.BulkResult {
	var res bank.BulkResult
	for i, q := range qs {
		if err := f.Create(ctx, q); err != nil {
			res.Failed = append(res.Failed, bank.ItemError{Index: i, Err: err})
			continue
		}
		res.Succeeded++
	}
	return res
}

func TestImportStructured(t *testing.T) {
	mem := bank.NewMemory()
	imp := &Importer{Bank: mem}

	raw := `[
		{"question": "Good one?", "options": [{"text": "a", "isCorrect": true}, {"text": "b"}], "justificativa": "Because."},
		{"question": "No correct here?", "options": ["a", "b"]},
		{"question": "", "options": ["a", "b"], "answer": "0"}
	]`
	summary, err := imp.Import(context.Background(), []byte(raw), "", model.Scope{CourseID: "c1"})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if summary.Format != FormatStructured {
		t.Errorf("expected structured format, got %q", summary.Format)
	}
	if summary.Parsed != 3 {
		t.Errorf("expected 3 parsed, got %d", summary.Parsed)
	}
	if summary.Imported != 1 {
		t.Errorf("expected 1 imported, got %d", summary.Imported)
	}
	if len(summary.Skipped) != 2 {
		t.Fatalf("expected 2 skipped, got %d", len(summary.Skipped))
	}
	if summary.Skipped[0].Index != 1 || summary.Skipped[0].Reason != ReasonNoCorrect {
		t.Errorf("unexpected skip 0: %+v", summary.Skipped[0])
	}
	if summary.Skipped[1].Index != 2 || summary.Skipped[1].Reason != ReasonEmptyPrompt {
		t.Errorf("unexpected skip 1: %+v", summary.Skipped[1])
	}

	qs, err := mem.Query(context.Background(), bank.Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("expected 1 stored question, got %d", len(qs))
	}
	q := qs[0]
	if q.Scope.CourseID != "c1" {
		t.Errorf("expected scope c1, got %q", q.Scope.CourseID)
	}
	if !strings.Contains(q.Text, "*Justificativa:* Because.") {
		t.Errorf("justification not appended: %q", q.Text)
	}
	if q.ID == "" || q.Options[0].ID == "" {
		t.Error("expected generated ids")
	}
	if q.Options[0].QuestionID != q.ID {
		t.Error("option not linked to question")
	}
	if q.Points != 1 || q.Difficulty != model.DifficultyMedium {
		t.Errorf("unexpected defaults: points %d difficulty %q", q.Points, q.Difficulty)
	}
}

func TestImportAnnotated(t *testing.T) {
	mem := bank.NewMemory()
	imp := &Importer{Bank: mem}

	raw := `1. Capital of France?
- [x] Paris
- [ ] London
`
	summary, err := imp.Import(context.Background(), []byte(raw), "md", model.Scope{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if summary.Format != FormatAnnotated {
		t.Errorf("expected annotated format, got %q", summary.Format)
	}
	if summary.Imported != 1 {
		t.Errorf("expected 1 imported, got %d", summary.Imported)
	}
}

func TestImportFormatErrorAbortsBeforeWrites(t *testing.T) {
	mem := bank.NewMemory()
	imp := &Importer{Bank: mem}

	_, err := imp.Import(context.Background(), []byte("no questions here"), "", model.Scope{})
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FormatError, got %v", err)
	}

	qs, _ := mem.Query(context.Background(), bank.Filter{})
	if len(qs) != 0 {
		t.Errorf("expected no writes after format error, got %d", len(qs))
	}
}

func TestImportContinuesPastWriteFailures(t *testing.T) {
	fb := &failingBank{Memory: bank.NewMemory(), trigger: "poison"}
	imp := &Importer{Bank: fb}

	raw := `[
		{"question": "poison pill?", "options": ["a", "b"], "answer": "0"},
		{"question": "Fine one?", "options": ["a", "b"], "answer": "1"}
	]`
	summary, err := imp.Import(context.Background(), []byte(raw), "json", model.Scope{})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if summary.Imported != 1 {
		t.Errorf("expected 1 imported, got %d", summary.Imported)
	}
	if len(summary.Failed) != 1 {
		t.Fatalf("expected 1 failed, got %d", len(summary.Failed))
	}
	// The failure index refers to the draft's position in the parsed batch.
	if summary.Failed[0].Index != 0 {
		t.Errorf("expected failed index 0, got %d", summary.Failed[0].Index)
	}

	qs, _ := fb.Memory.Query(context.Background(), bank.Filter{})
	if len(qs) != 1 {
		t.Errorf("expected 1 stored question, got %d", len(qs))
	}
}
