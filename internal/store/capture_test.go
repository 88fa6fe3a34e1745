package store

import (
	"errors"
	"image"
	"testing"
	"time"
)

func testCapture(id string, taken time.Time) *Capture {
	return &Capture{
		ID:        id,
		Path:      "captures/" + id + ".jpg",
		Width:     420,
		Height:    1320,
		Crop:      image.Rect(360, 40, 640, 920),
		SizeBytes: 123456,
		TakenAt:   taken,
	}
}

func TestCaptureRepository_CreateAndGet(t *testing.T) {
	repo := newTestStore(t).Captures()
	taken := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	in := testCapture("c1", taken)
	if err := repo.Create(in); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if in.CreatedAt.IsZero() {
		t.Error("Create() should set CreatedAt")
	}

	got, err := repo.GetByID("c1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Path != in.Path || got.Width != 420 || got.Height != 1320 || got.SizeBytes != 123456 {
		t.Errorf("GetByID() = %+v, want %+v", got, in)
	}
	if got.Crop != in.Crop {
		t.Errorf("Crop = %v, want %v", got.Crop, in.Crop)
	}
	if !got.TakenAt.Equal(taken) {
		t.Errorf("TakenAt = %v, want %v", got.TakenAt, taken)
	}
}

func TestCaptureRepository_DuplicateID(t *testing.T) {
	repo := newTestStore(t).Captures()
	if err := repo.Create(testCapture("dup", time.Now())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(testCapture("dup", time.Now())); err == nil {
		t.Error("expected error for duplicate id")
	}
}

func TestCaptureRepository_List(t *testing.T) {
	repo := newTestStore(t).Captures()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		if err := repo.Create(testCapture(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("List(0) order = %v, want newest first", ids(all))
	}

	recent, err := repo.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "c" {
		t.Errorf("List(2) = %v", ids(recent))
	}

	n, err := repo.Count()
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v; want 3", n, err)
	}
}

func TestCaptureRepository_NotFound(t *testing.T) {
	repo := newTestStore(t).Captures()

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestCaptureRepository_Delete(t *testing.T) {
	repo := newTestStore(t).Captures()
	if err := repo.Create(testCapture("gone", time.Now())); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := repo.Delete("gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID("gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
}

func ids(cs []*Capture) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}
