package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/chatdocs-ai/chatdocs/internal/api"
	"github.com/chatdocs-ai/chatdocs/internal/api/middleware"
	"github.com/chatdocs-ai/chatdocs/internal/domain"
	"github.com/chatdocs-ai/chatdocs/internal/service"
	"github.com/go-chi/chi/v5"
)

type KnowledgeBaseService interface {
	Create(ctx context.Context, input service.CreateKnowledgeBaseInput) (*domain.KnowledgeBase, error)
	GetByID(ctx context.Context, id, userID string) (*domain.KnowledgeBase, error)
	List(ctx context.Context, input service.ListKnowledgeBasesInput) (*service.ListKnowledgeBasesOutput, error)
	Update(ctx context.Context, input service.UpdateKnowledgeBaseInput) (*domain.KnowledgeBase, error)
	Delete(ctx context.Context, id, userID string) error
}

type KnowledgeBaseHandler struct {
	svc KnowledgeBaseService
}

func NewKnowledgeBaseHandler(svc KnowledgeBaseService) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{svc: svc}
}

type CreateKnowledgeBaseRequest struct {
	Name           string   `json:"name"`
	Detail         string   `json:"detail"`
	DocumentIDs    []string `json:"document_ids"`
	Public         bool     `json:"public"`
	AllowEmbedding bool     `json:"allow_embedding"`
}

type UpdateKnowledgeBaseRequest struct {
	Name           string   `json:"name"`
	Detail         string   `json:"detail"`
	DocumentIDs    []string `json:"document_ids"`
	Public         bool     `json:"public"`
	AllowEmbedding bool     `json:"allow_embedding"`
}

type KnowledgeBaseResponse struct {
	ID                 string   `json:"id"`
	UserID             string   `json:"user_id"`
	Name               string   `json:"name"`
	Detail             string   `json:"detail"`
	DocumentIDs        []string `json:"document_ids"`
	Public             bool     `json:"public"`
	AllowEmbedding     bool     `json:"allow_embedding"`
	HasDetailEmbedding bool     `json:"has_detail_embedding"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

func knowledgeBaseToResponse(kb *domain.KnowledgeBase) *KnowledgeBaseResponse {
	documentIDs := kb.DocumentIDs
	if documentIDs == nil {
		documentIDs = []string{}
	}
	return &KnowledgeBaseResponse{
		ID:                 kb.ID,
		UserID:             kb.UserID,
		Name:               kb.Name,
		Detail:             kb.Detail,
		DocumentIDs:        documentIDs,
		Public:             kb.Public,
		AllowEmbedding:     kb.AllowEmbedding,
		HasDetailEmbedding: kb.HasDetailEmbedding(),
		CreatedAt:          kb.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:          kb.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (h *KnowledgeBaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateKnowledgeBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	kb, err := h.svc.Create(r.Context(), service.CreateKnowledgeBaseInput{
		UserID:         userID,
		Name:           req.Name,
		Detail:         req.Detail,
		DocumentIDs:    req.DocumentIDs,
		Public:         req.Public,
		AllowEmbedding: req.AllowEmbedding,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, knowledgeBaseToResponse(kb))
}

func (h *KnowledgeBaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	kb, err := h.svc.GetByID(r.Context(), id, userID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, knowledgeBaseToResponse(kb))
}

type KnowledgeBaseListResponse struct {
	Items   []*KnowledgeBaseResponse `json:"items"`
	Cursor  string                   `json:"cursor,omitempty"`
	HasMore bool                     `json:"has_more"`
}

func (h *KnowledgeBaseHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.svc.List(r.Context(), service.ListKnowledgeBasesInput{
		UserID: userID,
		Cursor: cursor,
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*KnowledgeBaseResponse, len(output.Items))
	for i, kb := range output.Items {
		responses[i] = knowledgeBaseToResponse(kb)
	}

	api.Success(w, http.StatusOK, KnowledgeBaseListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *KnowledgeBaseHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req UpdateKnowledgeBaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	kb, err := h.svc.Update(r.Context(), service.UpdateKnowledgeBaseInput{
		KnowledgeBaseID: id,
		UserID:          userID,
		Name:            req.Name,
		Detail:          req.Detail,
		DocumentIDs:     req.DocumentIDs,
		Public:          req.Public,
		AllowEmbedding:  req.AllowEmbedding,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, knowledgeBaseToResponse(kb))
}

func (h *KnowledgeBaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id, userID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"status": "deleted"})
}
