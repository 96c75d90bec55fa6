package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shalynjjj/prompt2CAD/api"
)

type recordingStreamer struct {
	sessionID string
}

func (s *recordingStreamer) Serve(w http.ResponseWriter, _ *http.Request, sessionID string) {
	s.sessionID = sessionID
	w.WriteHeader(http.StatusSwitchingProtocols)
}

func TestEventsHandler(t *testing.T) {
	stream := &recordingStreamer{}
	h := NewEventsHandler(stream, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+api.PathSessionEvents, h.HandleEvents)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc-123/events", nil))
	assert.Equal(t, http.StatusSwitchingProtocols, w.Code)
	assert.Equal(t, "abc-123", stream.sessionID)
}

func TestEventsHandler_RejectsBadSessionID(t *testing.T) {
	stream := &recordingStreamer{}
	h := NewEventsHandler(stream, nil)
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+api.PathSessionEvents, h.HandleEvents)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/bad.id/events", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, stream.sessionID)
}
