package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attr    slog.Attr
	}{
		{"State", KeyState, State("IDLE")},
		{"From", KeyFrom, From("IDLE")},
		{"To", KeyTo, To("DETECTING_BODY")},
		{"Detector", KeyDetector, Detector("pose")},
		{"CaptureID", KeyCaptureID, CaptureID("abc")},
		{"Countdown", KeyCountdown, Countdown(3)},
		{"DurationMS", KeyDurationMS, DurationMS(1.5)},
		{"Mode", KeyMode, Mode("body")},
		{"Path", KeyPath, Path("/tmp/x.jpg")},
		{"Addr", KeyAddr, Addr(":8080")},
		{"Error", KeyError, Error(errors.New("boom"))},
	}
	for _, c := range cases {
		if c.attr.Key != c.attrKey {
			t.Errorf("%s: key = %q, want %q", c.name, c.attr.Key, c.attrKey)
		}
	}
}

func TestErrorNil(t *testing.T) {
	if got := Error(nil).Value.String(); got != "" {
		t.Errorf("Error(nil) = %q, want empty", got)
	}
}
