// Package main provides a photo plugin that copies each capture into an
// archive directory, one subdirectory per day.
//
// Build with: go build -o plugins/archive/archive ./plugins/archive
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Request represents the input from the plugin executor.
type Request struct {
	Event  string          `json:"event"`
	Photo  Photo           `json:"photo"`
	Config json.RawMessage `json:"config"`
}

// Photo is the capture to archive.
type Photo struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	TakenAt time.Time `json:"taken_at"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the plugin's settings block.
type Config struct {
	Dir string `json:"dir"`
	// ByDay files copies under dir/YYYY-MM-DD.
	ByDay bool `json:"by_day"`
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Event != "photo.captured" {
		writeErrorResponse(fmt.Sprintf("unknown event: %s", req.Event))
		return
	}

	dest, err := archive(req)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	data, _ := json.Marshal(map[string]string{"path": dest})
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}

// archive copies the photo and returns the destination path.
func archive(req Request) (string, error) {
	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return "", fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if cfg.Dir == "" {
		return "", errors.New("config.dir is required")
	}
	if req.Photo.Path == "" {
		return "", errors.New("photo.path is required")
	}

	dir := cfg.Dir
	if cfg.ByDay {
		taken := req.Photo.TakenAt
		if taken.IsZero() {
			taken = time.Now()
		}
		dir = filepath.Join(dir, taken.Format("2006-01-02"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	dest := filepath.Join(dir, filepath.Base(req.Photo.Path))
	if err := copyFile(req.Photo.Path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open photo: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy photo: %w", err)
	}
	return out.Close()
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}
