package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"gocv.io/x/gocv"
)

// ErrServiceNotFound is returned when mediapipe_service.py cannot be located.
var ErrServiceNotFound = errors.New("mediapipe_service.py not found")

// Service tasks understood by mediapipe_service.py.
const (
	TaskHands = "hands"
	TaskPose  = "pose"
)

// service runs one MediaPipe task in a Python subprocess. Frames are sent as
// a 4-byte big-endian length followed by JPEG bytes; each reply is one JSON line.
type service struct {
	task   string
	config Config
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	mu     sync.Mutex
}

func newService(task string, config Config) (*service, error) {
	s := &service{task: task, config: config}
	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *service) start() error {
	scriptPath := s.config.Script
	if scriptPath == "" {
		scriptPath = findMediaPipeScript()
	}
	if scriptPath == "" {
		return ErrServiceNotFound
	}

	pythonPath := s.config.Python
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	s.cmd = exec.Command(pythonPath, scriptPath,
		"--task", s.task,
		"--max-hands", strconv.Itoa(s.config.MaxHands),
		"--min-confidence", strconv.FormatFloat(s.config.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(s.config.MinTrackingConf, 'f', 2, 64),
	)

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	s.cmd.Stderr = os.Stderr

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe %s service: %w", s.task, err)
	}

	s.stdin = stdin
	s.stdout = bufio.NewReader(stdout)
	slog.Info("MediaPipe service started", "task", s.task, "script", scriptPath)
	return nil
}

// roundTrip sends one frame and decodes the reply into out.
func (s *service) roundTrip(frame *gocv.Mat, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return fmt.Errorf("mediapipe %s service closed", s.task)
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := s.stdin.Write(length); err != nil {
		return fmt.Errorf("write length: %w", err)
	}
	if _, err := s.stdin.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}

	line, err := s.stdout.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal([]byte(line), out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (s *service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return nil
	}

	if s.stdin != nil {
		s.stdin.Close()
	}

	err := s.cmd.Wait()
	s.cmd = nil
	s.stdin = nil
	s.stdout = nil

	return err
}

// MediaPipeHands implements HandDetector using the MediaPipe hand landmarker.
type MediaPipeHands struct {
	*service
}

// NewMediaPipeHands starts the hand landmarker subprocess.
func NewMediaPipeHands(config Config) (*MediaPipeHands, error) {
	s, err := newService(TaskHands, config)
	if err != nil {
		return nil, err
	}
	return &MediaPipeHands{service: s}, nil
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeHands) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	var response struct {
		Hands []jsonHand `json:"hands"`
	}
	if err := d.roundTrip(frame, &response); err != nil {
		return nil, err
	}

	result := make([]HandLandmarks, len(response.Hands))
	for i, h := range response.Hands {
		result[i] = h.toHandLandmarks()
	}
	return result, nil
}

// MediaPipePose implements PoseDetector using the MediaPipe pose landmarker.
type MediaPipePose struct {
	*service
}

// NewMediaPipePose starts the pose landmarker subprocess.
func NewMediaPipePose(config Config) (*MediaPipePose, error) {
	s, err := newService(TaskPose, config)
	if err != nil {
		return nil, err
	}
	return &MediaPipePose{service: s}, nil
}

// DetectPose analyzes a frame and returns the body landmarks, if any.
func (d *MediaPipePose) DetectPose(frame *gocv.Mat) (*PoseLandmarks, error) {
	var response struct {
		Pose []PoseLandmark `json:"pose"`
	}
	if err := d.roundTrip(frame, &response); err != nil {
		return nil, err
	}
	if len(response.Pose) == 0 {
		return nil, nil
	}
	if len(response.Pose) > NumPoseLandmarks {
		response.Pose = response.Pose[:NumPoseLandmarks]
	}
	return &PoseLandmarks{Points: response.Pose}, nil
}

func findMediaPipeScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/mediapipe_service.py",
		"../scripts/mediapipe_service.py",
		filepath.Join(execDir, "scripts/mediapipe_service.py"),
		filepath.Join(os.Getenv("HOME"), ".posebooth/scripts/mediapipe_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".posebooth/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

// toHandLandmarks copies at most NumLandmarks points; absent z stays zero.
func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		lm.Points[i] = h.Points[i]
	}
	return lm
}
