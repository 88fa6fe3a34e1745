// Package plugin runs external photo plugins after each capture.
//
// A plugin is a directory holding a plugin.json manifest and an executable.
// The executable receives one JSON Request on stdin and answers with one JSON
// Response on stdout.
package plugin

import (
	"encoding/json"
	"slices"
	"time"
)

// EventPhotoCaptured fires once a photo has been written and recorded.
const EventPhotoCaptured = "photo.captured"

// Manifest describes a plugin's metadata and the events it handles.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Events      []string `json:"events"`
	// TimeoutMs overrides the executor timeout when set.
	TimeoutMs int `json:"timeoutMs,omitempty"`
}

// Handles reports whether the plugin subscribed to event.
func (m Manifest) Handles(event string) bool {
	return slices.Contains(m.Events, event)
}

// Photo is the capture a plugin is asked to process.
type Photo struct {
	ID      string    `json:"id"`
	Path    string    `json:"path"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	TakenAt time.Time `json:"taken_at"`
}

// Request is sent to a plugin on stdin.
type Request struct {
	Event  string          `json:"event"`
	Photo  Photo           `json:"photo"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Response is read from a plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
