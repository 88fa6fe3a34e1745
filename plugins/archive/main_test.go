package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestArchive(t *testing.T) {
	src := filepath.Join(t.TempDir(), "p1.jpg")
	if err := os.WriteFile(src, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	dest := t.TempDir()
	taken := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		config  string
		want    string
		wantErr bool
	}{
		{"flat", `{"dir":"` + dest + `"}`, filepath.Join(dest, "p1.jpg"), false},
		{"by day", `{"dir":"` + dest + `","by_day":true}`, filepath.Join(dest, "2026-05-01", "p1.jpg"), false},
		{"missing dir", `{}`, "", true},
		{"bad config", `[`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := archive(Request{
				Event:  "photo.captured",
				Photo:  Photo{ID: "p1", Path: src, TakenAt: taken},
				Config: json.RawMessage(tt.config),
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("archive() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.want {
				t.Errorf("archive() = %q, want %q", got, tt.want)
			}
			data, err := os.ReadFile(got)
			if err != nil || string(data) != "jpeg" {
				t.Errorf("copy content = %q, err %v", data, err)
			}
		})
	}
}

func TestArchiveMissingPhoto(t *testing.T) {
	_, err := archive(Request{
		Event:  "photo.captured",
		Photo:  Photo{ID: "p1", Path: filepath.Join(t.TempDir(), "gone.jpg")},
		Config: json.RawMessage(`{"dir":"` + t.TempDir() + `"}`),
	})
	if err == nil {
		t.Error("expected error for a missing photo")
	}
}
