// Package handlers provides HTTP API request handlers.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gin-gonic/gin"
	"github.com/muesli/termenv"

	"github.com/remote-agent-terminal/ptyscreen/internal/frame"
	"github.com/remote-agent-terminal/ptyscreen/internal/model"
	"github.com/remote-agent-terminal/ptyscreen/internal/ws"
)

const (
	defaultListLimit  = 50
	defaultFrameWidth = 82

	maxListLimit   = 1000
	maxFrameWidth  = 1000
	maxFrameHeight = 10000
)

// CaptureStore is the read side of the capture history.
type CaptureStore interface {
	List(ctx context.Context, limit int) ([]*model.Capture, error)
	GetByID(ctx context.Context, id string) (*model.Capture, error)
}

// CaptureHandler serves the capture history over HTTP.
type CaptureHandler struct {
	store    CaptureStore
	replayer *ws.Replayer
	renderer *lipgloss.Renderer
}

// NewCaptureHandler creates a new CaptureHandler.
func NewCaptureHandler(store CaptureStore, replayer *ws.Replayer) *CaptureHandler {
	renderer := lipgloss.NewRenderer(io.Discard)
	renderer.SetColorProfile(termenv.Ascii)
	return &CaptureHandler{
		store:    store,
		replayer: replayer,
		renderer: renderer,
	}
}

// CaptureResponse represents a capture in API responses.
type CaptureResponse struct {
	ID        string   `json:"id"`
	Command   string   `json:"command"`
	Status    string   `json:"status"`
	Error     string   `json:"error,omitempty"`
	Device    string   `json:"device,omitempty"`
	Strategy  string   `json:"strategy,omitempty"`
	HasCast   bool     `json:"hasCast"`
	Bytes     int      `json:"bytes"`
	LineCount int      `json:"lineCount"`
	Preview   string   `json:"preview,omitempty"`
	Lines     []string `json:"lines,omitempty"`
	Duration  string   `json:"duration"`
	StartedAt string   `json:"startedAt"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toCaptureResponse(c *model.Capture, withLines bool) *CaptureResponse {
	resp := &CaptureResponse{
		ID:        c.ID,
		Command:   c.Command,
		Status:    string(c.Status),
		Error:     c.Error,
		Device:    c.Device,
		Strategy:  c.Strategy,
		HasCast:   c.CastPath != "",
		Bytes:     c.Bytes,
		LineCount: len(c.Lines),
		Preview:   c.Preview(),
		Duration:  c.Duration.Round(time.Millisecond).String(),
		StartedAt: c.StartedAt.Format(time.RFC3339),
	}
	if withLines {
		resp.Lines = c.Lines
	}
	return resp
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// positiveQuery parses an optional integer query parameter in [1, limit].
func positiveQuery(c *gin.Context, name string, fallback, limit int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be a positive integer")
		return 0, false
	}
	if n > limit {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", name+" must be at most "+strconv.Itoa(limit))
		return 0, false
	}
	return n, true
}

// lookup loads the capture named by the :id parameter, answering the request
// itself when that fails.
func (h *CaptureHandler) lookup(c *gin.Context) (*model.Capture, bool) {
	id := c.Param("id")
	capture, err := h.store.GetByID(c.Request.Context(), id)
	if errors.Is(err, model.ErrCaptureNotFound) {
		sendError(c, http.StatusNotFound, "CAPTURE_NOT_FOUND", "Capture "+id+" not found")
		return nil, false
	}
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get capture: "+err.Error())
		return nil, false
	}
	return capture, true
}

// List handles GET /api/captures - lists the most recent captures.
func (h *CaptureHandler) List(c *gin.Context) {
	limit, ok := positiveQuery(c, "limit", defaultListLimit, maxListLimit)
	if !ok {
		return
	}

	captures, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list captures: "+err.Error())
		return
	}

	response := make([]*CaptureResponse, len(captures))
	for i, capture := range captures {
		response[i] = toCaptureResponse(capture, false)
	}
	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/captures/:id - returns a capture with its lines.
func (h *CaptureHandler) Get(c *gin.Context) {
	capture, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toCaptureResponse(capture, true))
}

// Frame handles GET /api/captures/:id/frame - renders the capture as a framed
// text screen. Optional width and height query parameters size the frame.
func (h *CaptureHandler) Frame(c *gin.Context) {
	width, ok := positiveQuery(c, "width", defaultFrameWidth, maxFrameWidth)
	if !ok {
		return
	}
	height, ok := positiveQuery(c, "height", 0, maxFrameHeight)
	if !ok {
		return
	}
	capture, ok := h.lookup(c)
	if !ok {
		return
	}

	screen := frame.Render(capture.Lines, frame.Options{
		Width:    width,
		Height:   height,
		Padding:  frame.DefaultPadding,
		Renderer: h.renderer,
	})
	c.String(http.StatusOK, screen)
}

// Cast handles GET /api/captures/:id/cast - downloads the asciinema recording.
func (h *CaptureHandler) Cast(c *gin.Context) {
	capture, ok := h.lookup(c)
	if !ok {
		return
	}
	if capture.CastPath == "" {
		sendError(c, http.StatusNotFound, "CAST_NOT_FOUND", "No recording for capture "+capture.ID)
		return
	}

	c.Header("Content-Type", "application/x-asciicast")
	c.Header("Content-Disposition", "attachment; filename="+capture.ID+".cast")
	c.File(capture.CastPath)
}

// Replay handles GET /api/captures/:id/replay - streams the recording over a
// WebSocket. The optional speed query parameter scales its pacing; 0 sends
// everything at once.
func (h *CaptureHandler) Replay(c *gin.Context) {
	speed := 1.0
	if raw := c.Query("speed"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "speed must be a non-negative number")
			return
		}
		speed = parsed
	}
	capture, ok := h.lookup(c)
	if !ok {
		return
	}
	if capture.CastPath == "" {
		sendError(c, http.StatusNotFound, "CAST_NOT_FOUND", "No recording for capture "+capture.ID)
		return
	}

	if err := h.replayer.Serve(c.Writer, c.Request, capture.CastPath, speed); err != nil {
		c.Error(err)
	}
}

// RegisterRoutes registers the capture handler routes on a Gin router group.
func (h *CaptureHandler) RegisterRoutes(rg *gin.RouterGroup) {
	captures := rg.Group("/captures")
	{
		captures.GET("", h.List)
		captures.GET("/:id", h.Get)
		captures.GET("/:id/frame", h.Frame)
		captures.GET("/:id/cast", h.Cast)
		captures.GET("/:id/replay", h.Replay)
	}
}
