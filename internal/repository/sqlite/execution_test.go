package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sakif/code-executor/internal/apperror"
	"github.com/sakif/code-executor/internal/model"
	"github.com/sakif/code-executor/internal/repository"
)

// newTestDB returns an in-memory database closed at the end of the test.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestExecution(t *testing.T, db *DB, code string, createdAt time.Time) *model.Execution {
	t.Helper()
	e := &model.Execution{
		Code:      code,
		TimeoutMS: 10000,
		Status:    "success",
		Output:    "ok",
		CreatedAt: createdAt,
	}
	if err := db.Create(context.Background(), e); err != nil {
		t.Fatalf("failed to create test execution: %v", err)
	}
	return e
}

func TestCreate(t *testing.T) {
	db := newTestDB(t)

	e := &model.Execution{
		Code:       `print("hi")`,
		TimeoutMS:  1000,
		Status:     "error",
		Output:     "Execution timed out",
		ExitCode:   -1,
		DurationMS: 1012,
		Subject:    "operator",
	}
	if err := db.Create(context.Background(), e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.ID == "" {
		t.Error("Create() did not set ID")
	}
	if e.CreatedAt.IsZero() {
		t.Error("Create() did not set CreatedAt")
	}

	found, err := db.GetByID(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Code != e.Code || found.Output != e.Output || found.Status != e.Status {
		t.Errorf("GetByID() = %+v, want %+v", found, e)
	}
	if found.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", found.ExitCode)
	}
	if found.DurationMS != 1012 || found.TimeoutMS != 1000 {
		t.Errorf("durations = %d/%d, want 1012/1000", found.DurationMS, found.TimeoutMS)
	}
	if found.Subject != "operator" {
		t.Errorf("Subject = %q, want %q", found.Subject, "operator")
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestList_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	createTestExecution(t, db, "first", base)
	createTestExecution(t, db, "second", base.Add(time.Minute))
	createTestExecution(t, db, "third", base.Add(2*time.Minute))

	execs, err := db.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(execs) != 3 {
		t.Fatalf("List() returned %d executions, want 3", len(execs))
	}

	want := []string{"third", "second", "first"}
	for i, e := range execs {
		if e.Code != want[i] {
			t.Errorf("execs[%d].Code = %q, want %q", i, e.Code, want[i])
		}
	}
}

func TestList_Pagination(t *testing.T) {
	db := newTestDB(t)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		createTestExecution(t, db, "x", base.Add(time.Duration(i)*time.Second))
	}

	tests := []struct {
		name string
		opts repository.ListOptions
		want int
	}{
		{name: "first page", opts: repository.ListOptions{Limit: 2}, want: 2},
		{name: "last partial page", opts: repository.ListOptions{Limit: 2, Offset: 4}, want: 1},
		{name: "past the end", opts: repository.ListOptions{Limit: 2, Offset: 10}, want: 0},
		{name: "negative offset", opts: repository.ListOptions{Limit: 10, Offset: -3}, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			execs, err := db.List(context.Background(), tt.opts)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(execs) != tt.want {
				t.Errorf("List() returned %d, want %d", len(execs), tt.want)
			}
		})
	}
}

func TestNew_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "executor.db")

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	created := createTestExecution(t, db, "persisted", time.Now())
	db.Close()

	// Reopen: migrations must be idempotent and data must survive.
	db, err = New(path)
	if err != nil {
		t.Fatalf("New() reopen error = %v", err)
	}
	defer db.Close()

	if _, err := db.GetByID(context.Background(), created.ID); err != nil {
		t.Errorf("GetByID() after reopen error = %v", err)
	}
}
