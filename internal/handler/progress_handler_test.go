package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pathshala-labs/pathshala-api/internal/dto"
	"github.com/pathshala-labs/pathshala-api/internal/handler"
	"github.com/pathshala-labs/pathshala-api/internal/service"
)

type stubProgressService struct {
	response    dto.ProgressResponse
	err         error
	lastStudent uint
	lastPayload dto.CompletionRequest
	lastCourse  uint
	calls       int
}

func (s *stubProgressService) RecordCompletion(_ context.Context, studentID uint, payload dto.CompletionRequest) (dto.ProgressResponse, error) {
	s.calls++
	s.lastStudent = studentID
	s.lastPayload = payload
	if s.err != nil {
		return dto.ProgressResponse{}, s.err
	}
	return s.response, nil
}

func (s *stubProgressService) GetProgress(_ context.Context, studentID, courseID uint) (dto.ProgressResponse, error) {
	s.calls++
	s.lastStudent = studentID
	s.lastCourse = courseID
	if s.err != nil {
		return dto.ProgressResponse{}, s.err
	}
	return s.response, nil
}

var _ service.ProgressService = (*stubProgressService)(nil)

func newProgressApp(svc service.ProgressService, authenticated bool) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/progress", func(c *fiber.Ctx) error {
		if authenticated {
			c.Locals("user_id", uint(33))
		}
		return c.Next()
	})
	handler.NewProgressHandler(svc, zerolog.Nop()).Register(group)
	return app
}

func TestProgressHandlerRecordCompletion(t *testing.T) {
	svc := &stubProgressService{response: dto.ProgressResponse{CourseID: 5, OverallProgress: 60}}
	app := newProgressApp(svc, true)

	body, err := json.Marshal(dto.CompletionRequest{CourseID: 5, ContentID: "v1", Type: "video"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/progress/complete", bytes.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                 `json:"success"`
		Message string               `json:"message"`
		Data    dto.ProgressResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()

	require.True(t, payload.Success)
	require.Equal(t, "progress updated", payload.Message)
	require.Equal(t, 60, payload.Data.OverallProgress)
	require.Equal(t, uint(33), svc.lastStudent)
	require.Equal(t, "v1", svc.lastPayload.ContentID)
}

func TestProgressHandlerRecordCompletionUnauthorized(t *testing.T) {
	svc := &stubProgressService{}
	app := newProgressApp(svc, false)

	body := []byte(`{"course_id":5,"content_id":"v1","type":"video"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/progress/complete", bytes.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 0, svc.calls)
}

func TestProgressHandlerRecordCompletionCourseNotFound(t *testing.T) {
	svc := &stubProgressService{err: service.ErrCourseNotFound}
	app := newProgressApp(svc, true)

	body := []byte(`{"course_id":999,"content_id":"v1","type":"video"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/progress/complete", bytes.NewReader(body))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestProgressHandlerRecordCompletionBadBody(t *testing.T) {
	svc := &stubProgressService{}
	app := newProgressApp(svc, true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/progress/complete", bytes.NewReader([]byte("{not-json")))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, 0, svc.calls)
}

func TestProgressHandlerGetProgress(t *testing.T) {
	svc := &stubProgressService{response: dto.ProgressResponse{CourseID: 7, OverallProgress: 45}}
	app := newProgressApp(svc, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/progress/7", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload struct {
		Success bool                 `json:"success"`
		Data    dto.ProgressResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()

	require.True(t, payload.Success)
	require.Equal(t, uint(7), payload.Data.CourseID)
	require.Equal(t, uint(7), svc.lastCourse)
	require.Equal(t, uint(33), svc.lastStudent)
}

func TestProgressHandlerGetProgressInvalidCourseID(t *testing.T) {
	svc := &stubProgressService{}
	app := newProgressApp(svc, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/progress/not-a-number", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Equal(t, 0, svc.calls)
}
