package handlers_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carepoint/internal/api/handlers"
	"github.com/zatekoja/carepoint/internal/api/middleware"
	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

type stubIntegrationService struct {
	maxBytes int64
	uploaded []byte
	filename string
	files    map[string]*entities.StoredFile
	llmReq   entities.LLMRequest
}

func (s *stubIntegrationService) InvokeLLM(_ context.Context, req entities.LLMRequest) (map[string]any, error) {
	s.llmReq = req
	if req.Prompt == "" {
		return nil, apperrors.NewValidationError("prompt is required")
	}
	return map[string]any{"response": "hello"}, nil
}

func (s *stubIntegrationService) UploadFile(_ context.Context, _ *entities.Principal, filename string, content []byte) (*services.UploadResult, error) {
	s.filename = filename
	s.uploaded = content
	return &services.UploadResult{FileURL: "https://api.example.com/files/f1"}, nil
}

func (s *stubIntegrationService) GetFile(_ context.Context, id string) (*entities.StoredFile, error) {
	if f, ok := s.files[id]; ok {
		return f, nil
	}
	return nil, apperrors.NewNotFoundError("file not found")
}

func (s *stubIntegrationService) MaxUploadBytes() int64 {
	return s.maxBytes
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestIntegrationHandler_InvokeLLM(t *testing.T) {
	service := &stubIntegrationService{maxBytes: 1 << 20}
	handler := handlers.NewIntegrationHandler(service)

	w := httptest.NewRecorder()
	handler.InvokeLLM(w, authed(testUser, http.MethodPost, "/api/integrations/core/invoke-llm",
		`{"prompt":"hi","add_context_from_internet":true}`))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"hello"}`, w.Body.String())
	assert.True(t, service.llmReq.AddContextFromInternet)

	w = httptest.NewRecorder()
	handler.InvokeLLM(w, authed(testUser, http.MethodPost, "/api/integrations/core/invoke-llm", `{}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIntegrationHandler_UploadFile(t *testing.T) {
	service := &stubIntegrationService{maxBytes: 1 << 20}
	handler := handlers.NewIntegrationHandler(service)

	body, contentType := multipartBody(t, "file", "scan.txt", []byte("blood pressure 120/80"))
	req := httptest.NewRequest(http.MethodPost, "/api/integrations/core/upload-file", body)
	req = req.WithContext(middleware.WithPrincipal(req.Context(), testUser))
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	handler.UploadFile(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"file_url":"https://api.example.com/files/f1"}`, w.Body.String())
	assert.Equal(t, "scan.txt", service.filename)
	assert.Equal(t, "blood pressure 120/80", string(service.uploaded))
}

func TestIntegrationHandler_UploadFile_Rejections(t *testing.T) {
	t.Run("missing field", func(t *testing.T) {
		handler := handlers.NewIntegrationHandler(&stubIntegrationService{maxBytes: 1 << 20})
		body, contentType := multipartBody(t, "document", "scan.txt", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/api/integrations/core/upload-file", body)
		req.Header.Set("Content-Type", contentType)

		w := httptest.NewRecorder()
		handler.UploadFile(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("too large", func(t *testing.T) {
		handler := handlers.NewIntegrationHandler(&stubIntegrationService{maxBytes: 16})
		body, contentType := multipartBody(t, "file", "big.txt", bytes.Repeat([]byte("a"), 200<<10))
		req := httptest.NewRequest(http.MethodPost, "/api/integrations/core/upload-file", body)
		req.Header.Set("Content-Type", contentType)

		w := httptest.NewRecorder()
		handler.UploadFile(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestIntegrationHandler_ServeFile(t *testing.T) {
	service := &stubIntegrationService{files: map[string]*entities.StoredFile{
		"f1": {ID: "f1", ContentType: "application/pdf", Content: []byte("%PDF-1.4")},
	}}
	handler := handlers.NewIntegrationHandler(service)

	w := httptest.NewRecorder()
	handler.ServeFile(w, authed(nil, http.MethodGet, "/files/f1", "", "id", "f1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4", w.Body.String())

	w = httptest.NewRecorder()
	handler.ServeFile(w, authed(nil, http.MethodGet, "/files/nope", "", "id", "nope"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
