package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/posebooth/internal/detector"
	"github.com/ayusman/posebooth/internal/kiosk"
	"github.com/ayusman/posebooth/internal/logfields"
)

const (
	eventInterval = 66 * time.Millisecond
	writeWait     = 2 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// event is one state message sent to kiosk displays.
type event struct {
	kiosk.Snapshot
	Pose       []detector.PoseLandmark  `json:"pose,omitempty"`
	Hands      []detector.HandLandmarks `json:"hands,omitempty"`
	Gesture    bool                     `json:"gesture"`
	Confidence float64                  `json:"confidence,omitempty"`
	Error      string                   `json:"error,omitempty"`
	Timestamp  int64                    `json:"timestamp"`
}

// EventsHandler pushes state snapshots over a WebSocket whenever they change.
type EventsHandler struct {
	kiosk  Kiosk
	logger *slog.Logger
}

// NewEventsHandler creates a new EventsHandler for the kiosk.
func NewEventsHandler(k Kiosk, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{kiosk: k, logger: logger}
}

// ServeHTTP upgrades the request and polls the kiosk until the client leaves.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logfields.Error(err))
		return
	}
	defer conn.Close()

	// Reads only detect the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventInterval)
	defer ticker.Stop()

	var last []byte
	for {
		msg, err := json.Marshal(h.event())
		if err != nil {
			h.logger.Error("failed to encode event", logfields.Error(err))
			return
		}
		// Compare without the timestamp so idle kiosks stay quiet.
		if key := eventKey(msg); !bytes.Equal(key, last) {
			last = key
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}

		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *EventsHandler) event() event {
	snap := h.kiosk.Snapshot()
	ev := event{Snapshot: snap, Timestamp: time.Now().UnixMilli()}
	if snap.Pose != nil {
		ev.Pose = snap.Pose.Points
	}
	if snap.Hands != nil {
		ev.Hands = snap.Hands.Hands
		ev.Gesture = snap.Hands.Found && snap.Hands.Result.IsOK
		ev.Confidence = snap.Hands.Result.Confidence
	}
	if err := h.kiosk.Err(); err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// eventKey strips the trailing timestamp field from an encoded event.
func eventKey(msg []byte) []byte {
	if i := bytes.LastIndex(msg, []byte(`,"timestamp":`)); i >= 0 {
		return msg[:i]
	}
	return msg
}
