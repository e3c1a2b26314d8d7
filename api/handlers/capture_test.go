package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/remote-agent-terminal/ptyscreen/internal/db"
	"github.com/remote-agent-terminal/ptyscreen/internal/model"
	"github.com/remote-agent-terminal/ptyscreen/internal/repository"
	"github.com/remote-agent-terminal/ptyscreen/internal/ws"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *repository.CaptureRepository) {
	t.Helper()
	testDB, err := db.NewTestDB()
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { testDB.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	repo := repository.NewCaptureRepository(testDB)
	return NewRouter(repo, log), repo
}

func seed(t *testing.T, repo *repository.CaptureRepository, command string, lines []string, startedAt time.Time) *model.Capture {
	t.Helper()
	capture, err := model.NewCapture(command, startedAt)
	if err != nil {
		t.Fatal(err)
	}
	capture.Lines = lines
	capture.Duration = 1500 * time.Millisecond
	if err := repo.Create(context.Background(), capture); err != nil {
		t.Fatal(err)
	}
	return capture
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := get(r, "/health")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("GET /health = %d %s", w.Code, w.Body.String())
	}
}

func TestListCaptures(t *testing.T) {
	r, repo := newTestRouter(t)
	base := time.Now().Add(-time.Hour)
	seed(t, repo, "older", []string{"a"}, base)
	seed(t, repo, "newer", []string{"b", "last"}, base.Add(time.Minute))

	w := get(r, "/api/captures")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/captures = %d %s", w.Code, w.Body.String())
	}
	var resp []CaptureResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp) != 2 || resp[0].Command != "newer" || resp[0].Preview != "last" || resp[0].LineCount != 2 {
		t.Errorf("unexpected list %+v", resp)
	}
	if resp[0].Lines != nil {
		t.Errorf("list should not carry lines, got %q", resp[0].Lines)
	}
	if resp[0].Duration != "1.5s" {
		t.Errorf("Duration = %q, want 1.5s", resp[0].Duration)
	}

	w = get(r, "/api/captures?limit=1")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp) != 1 {
		t.Errorf("limit=1 returned %d captures", len(resp))
	}

	for _, query := range []string{"limit=zero", "limit=1001"} {
		if w := get(r, "/api/captures?"+query); w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", query, w.Code)
		}
	}
}

func TestGetCapture(t *testing.T) {
	r, repo := newTestRouter(t)
	capture := seed(t, repo, "echo hi", []string{"hi"}, time.Now())

	w := get(r, "/api/captures/"+capture.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("GET capture = %d %s", w.Code, w.Body.String())
	}
	var resp CaptureResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != capture.ID || len(resp.Lines) != 1 || resp.Lines[0] != "hi" || resp.Status != "ok" {
		t.Errorf("unexpected capture %+v", resp)
	}

	w = get(r, "/api/captures/nope")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing capture = %d, want 404", w.Code)
	}
	var errResp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil || errResp.Error.Code != "CAPTURE_NOT_FOUND" {
		t.Errorf("error body = %s", w.Body.String())
	}
}

func TestFrameCapture(t *testing.T) {
	r, repo := newTestRouter(t)
	capture := seed(t, repo, "greet", []string{"hello", "world"}, time.Now())

	w := get(r, "/api/captures/"+capture.ID+"/frame?width=20&height=1")
	if w.Code != http.StatusOK {
		t.Fatalf("GET frame = %d %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if strings.Contains(body, "hello") || !strings.Contains(body, "│ world") {
		t.Errorf("frame should show only the last row:\n%s", body)
	}
	if strings.Contains(body, "\x1b[") {
		t.Errorf("frame contains escape sequences:\n%q", body)
	}

	for _, query := range []string{"width=-3", "width=1001", "height=10001", "height=2000000000"} {
		w := get(r, "/api/captures/"+capture.ID+"/frame?"+query)
		if w.Code != http.StatusBadRequest {
			t.Errorf("frame?%s = %d, want 400", query, w.Code)
			continue
		}
		var errResp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil || errResp.Error.Code != "VALIDATION_ERROR" {
			t.Errorf("frame?%s error body = %s", query, w.Body.String())
		}
	}

	if w := get(r, "/api/captures/"+capture.ID+"/frame?width=1000&height=10000"); w.Code != http.StatusOK {
		t.Errorf("frame at the size limits = %d, want 200", w.Code)
	}
}

func TestCastDownload(t *testing.T) {
	r, repo := newTestRouter(t)

	castPath := filepath.Join(t.TempDir(), "x.cast")
	if err := os.WriteFile(castPath, []byte(`{"version":2}`+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	capture, _ := model.NewCapture("recorded", time.Now())
	capture.CastPath = castPath
	if err := repo.Create(context.Background(), capture); err != nil {
		t.Fatal(err)
	}
	plain := seed(t, repo, "plain", nil, time.Now())

	w := get(r, "/api/captures/"+capture.ID+"/cast")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"version":2`) {
		t.Errorf("GET cast = %d %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-asciicast" {
		t.Errorf("Content-Type = %q", ct)
	}

	if w := get(r, "/api/captures/"+plain.ID+"/cast"); w.Code != http.StatusNotFound {
		t.Errorf("capture without cast = %d, want 404", w.Code)
	}
}

func TestReplayCapture(t *testing.T) {
	r, repo := newTestRouter(t)

	castPath := filepath.Join(t.TempDir(), "x.cast")
	cast := `{"version":2,"width":80,"height":24}` + "\n" + `[0.5,"o","hi\r\n"]` + "\n"
	if err := os.WriteFile(castPath, []byte(cast), 0644); err != nil {
		t.Fatal(err)
	}
	capture, _ := model.NewCapture("recorded", time.Now())
	capture.CastPath = castPath
	if err := repo.Create(context.Background(), capture); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(r)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/captures/" + capture.ID + "/replay?speed=0"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var got []ws.Message
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		got = append(got, msg)
	}
	if len(got) != 3 || got[1].Type != ws.MessageTypeOutput || got[1].Data != "hi\r\n" || got[2].Type != ws.MessageTypeDone {
		t.Errorf("replay messages = %+v", got)
	}

	if w := get(r, "/api/captures/"+capture.ID+"/replay?speed=fast"); w.Code != http.StatusBadRequest {
		t.Errorf("speed=fast = %d, want 400", w.Code)
	}
}

type failingStore struct{}

func (failingStore) List(context.Context, int) ([]*model.Capture, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) GetByID(context.Context, string) (*model.Capture, error) {
	return nil, errors.New("disk on fire")
}

func TestStoreFailures(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	r := NewRouter(failingStore{}, log)

	for _, path := range []string{"/api/captures", "/api/captures/x", "/api/captures/x/frame"} {
		if w := get(r, path); w.Code != http.StatusInternalServerError {
			t.Errorf("GET %s = %d, want 500", path, w.Code)
		}
	}
}
