// Package logfields holds canonical slog attribute names shared across packages.
package logfields

import "log/slog"

const (
	KeyState      = "state"
	KeyFrom       = "from"
	KeyTo         = "to"
	KeyDetector   = "detector"
	KeyCaptureID  = "capture_id"
	KeyCountdown  = "countdown"
	KeyDurationMS = "duration_ms"
	KeyMode       = "mode"
	KeyPath       = "path"
	KeyAddr       = "addr"
	KeyError      = "error"
)

func State(s string) slog.Attr         { return slog.String(KeyState, s) }
func From(s string) slog.Attr          { return slog.String(KeyFrom, s) }
func To(s string) slog.Attr            { return slog.String(KeyTo, s) }
func Detector(name string) slog.Attr   { return slog.String(KeyDetector, name) }
func CaptureID(id string) slog.Attr    { return slog.String(KeyCaptureID, id) }
func Countdown(n int) slog.Attr        { return slog.Int(KeyCountdown, n) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Mode(m string) slog.Attr          { return slog.String(KeyMode, m) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Addr(a string) slog.Attr          { return slog.String(KeyAddr, a) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
