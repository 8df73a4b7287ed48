package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/promotion/posecore/internal/logging"
)

// DefaultInterval is used when Dependencies.Interval is not positive.
const DefaultInterval = time.Second

// Status is a point-in-time view of the engine.
type Status struct {
	Time       time.Time `json:"time"`
	State      string    `json:"state"`
	Epoch      uint64    `json:"epoch"`
	SessionID  string    `json:"sessionId,omitempty"`
	Sport      string    `json:"sport,omitempty"`
	Action     string    `json:"action,omitempty"`
	Frames     int       `json:"frames"`
	Dropped    int       `json:"dropped"`
	References []string  `json:"references"`
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source     func() Status
	LogManager *logging.SlogManager
	StatusFile string
	Interval   time.Duration
}

// Service periodically writes the engine status to a file
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current status and its indented JSON rendering.
func (s *Service) GetStatus() (output string, status Status) {
	status = s.deps.Source()
	if status.Time.IsZero() {
		status.Time = time.Now().UTC()
	}
	raw, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		raw = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	return string(raw), status
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	statusFile, err := os.Create(s.deps.StatusFile)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create status file: %w", err)
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	stop, done := s.stopChan, s.doneChan
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer statusFile.Close()
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "file", s.deps.StatusFile, "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				out, status := s.GetStatus()
				if status.Epoch == 0 {
					continue
				}
				if err := writeStatus(statusFile, out); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

func writeStatus(f *os.File, out string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := f.WriteString(out + "\n")
	return err
}

// Stop stops the status monitor and waits for its goroutine to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.doneChan
	s.mu.Unlock()
	<-done
}
