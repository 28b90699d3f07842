package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chatdocs-ai/chatdocs/internal/api/middleware"
	"github.com/chatdocs-ai/chatdocs/internal/domain"
	"github.com/chatdocs-ai/chatdocs/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Ingest(ctx context.Context, input service.IngestInput) (*domain.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) GetDocument(ctx context.Context, id, userID string) (*domain.Document, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) ListDocuments(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListDocumentsOutput), args.Error(1)
}

func (m *MockDocumentService) DeleteDocument(ctx context.Context, id, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockDocumentService) DownloadURL(ctx context.Context, id, userID string) (string, error) {
	args := m.Called(ctx, id, userID)
	return args.String(0), args.Error(1)
}

func newTestDocument() *domain.Document {
	now := time.Now().UTC()
	return &domain.Document{
		ID:        "doc-123",
		UserID:    "user-456",
		Title:     "Quarterly Report",
		FileName:  "report.pdf",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func requestWithUserID(method, url string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, "user-456")
	return req.WithContext(ctx)
}

func multipartUploadRequest(t *testing.T, fileName, title string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)

	if title != "" {
		require.NoError(t, writer.WriteField("title", title))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	ctx := context.WithValue(req.Context(), middleware.UserIDKey, "user-456")
	return req.WithContext(ctx)
}

func requestWithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestDocumentHandler_Upload_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	expectedDoc := newTestDocument()
	mockSvc.On("Ingest", mock.Anything, mock.MatchedBy(func(input service.IngestInput) bool {
		return input.UserID == "user-456" &&
			input.FileName == "report.txt" &&
			input.Title == "Quarterly Report" &&
			string(input.FileBytes) == "hello world"
	})).Return(expectedDoc, nil)

	req := multipartUploadRequest(t, "report.txt", "Quarterly Report", []byte("hello world"))
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "doc-123", data["id"])
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_Upload_Unauthorized(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	req := httptest.NewRequest(http.MethodPost, "/documents", nil)
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	mockSvc.AssertNotCalled(t, "Ingest")
}

func TestDocumentHandler_Upload_MissingFile(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	req := requestWithUserID(http.MethodPost, "/documents", []byte("not multipart"))
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Ingest")
}

func TestDocumentHandler_Upload_UnsupportedFormat(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("Ingest", mock.Anything, mock.Anything).
		Return(nil, domain.ErrUnsupportedFormat)

	req := multipartUploadRequest(t, "photo.png", "", []byte{0x89, 0x50})
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestDocumentHandler_Get_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	expectedDoc := newTestDocument()
	mockSvc.On("GetDocument", mock.Anything, "doc-123", "user-456").Return(expectedDoc, nil)

	req := requestWithUserID(http.MethodGet, "/documents/doc-123", nil)
	req = requestWithURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "Quarterly Report", data["title"])
}

func TestDocumentHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("GetDocument", mock.Anything, "missing", "user-456").
		Return(nil, domain.ErrDocumentNotFound)

	req := requestWithUserID(http.MethodGet, "/documents/missing", nil)
	req = requestWithURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandler_List_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("ListDocuments", mock.Anything, mock.MatchedBy(func(input service.ListDocumentsInput) bool {
		return input.UserID == "user-456" && input.Limit == 5 && input.Cursor == "abc"
	})).Return(&service.ListDocumentsOutput{
		Items:   []*domain.Document{newTestDocument()},
		Cursor:  "next",
		HasMore: true,
	}, nil)

	req := requestWithUserID(http.MethodGet, "/documents?limit=5&cursor=abc", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "next", data["cursor"])
	assert.Equal(t, true, data["has_more"])
	items := data["items"].([]interface{})
	assert.Len(t, items, 1)
}

func TestDocumentHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("DeleteDocument", mock.Anything, "doc-123", "user-456").Return(nil)

	req := requestWithUserID(http.MethodDelete, "/documents/doc-123", nil)
	req = requestWithURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestDocumentHandler_GetDownloadURL_Success(t *testing.T) {
	mockSvc := new(MockDocumentService)
	handler := NewDocumentHandler(mockSvc)

	mockSvc.On("DownloadURL", mock.Anything, "doc-123", "user-456").
		Return("https://blobs.example.com/user_user-456/report.pdf?sig=x", nil)

	req := requestWithUserID(http.MethodGet, "/documents/doc-123/download", nil)
	req = requestWithURLParam(req, "id", "doc-123")
	w := httptest.NewRecorder()

	handler.GetDownloadURL(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Contains(t, data["download_url"], "report.pdf")
}
