package initializer

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	v1 "github.com/dwhkit/warehouse-bootstrap/pkg/api/v1"
)

// service holds the current initializer status and serves it as JSON.
type service struct {
	log *slog.Logger

	mu      sync.RWMutex
	current v1.StatusResponse
}

func newService(log *slog.Logger) *service {
	return &service{
		log: log,
		current: v1.StatusResponse{
			Status:  v1.StatusChecking,
			Message: "starting initializer",
		},
	}
}

func (s *service) set(status v1.Status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = v1.StatusResponse{
		Status:  status,
		Message: message,
	}
}

func (s *service) get() v1.StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *service) statusHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	current := s.get()
	if err := json.NewEncoder(w).Encode(current); err != nil {
		s.log.Error("error encoding status response", "error", err)
	}
}
