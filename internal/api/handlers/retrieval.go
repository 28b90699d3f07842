package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/chatdocs-ai/chatdocs/internal/api"
	"github.com/chatdocs-ai/chatdocs/internal/api/middleware"
	"github.com/chatdocs-ai/chatdocs/internal/domain"
	"github.com/chatdocs-ai/chatdocs/internal/service"
)

type RetrievalServiceInterface interface {
	Retrieve(ctx context.Context, input service.RetrieveInput) ([]*domain.RetrievalResult, error)
	Ask(ctx context.Context, input service.RetrieveInput) (*service.AskOutput, error)
}

type RetrievalHandler struct {
	svc RetrievalServiceInterface
}

func NewRetrievalHandler(svc RetrievalServiceInterface) *RetrievalHandler {
	return &RetrievalHandler{svc: svc}
}

type RetrieveRequest struct {
	Query           string   `json:"query"`
	KnowledgeBaseID string   `json:"knowledge_base_id,omitempty"`
	DocumentIDs     []string `json:"document_ids,omitempty"`
	Limit           int      `json:"limit,omitempty"`
}

type RetrievalResultResponse struct {
	Content      string  `json:"content"`
	SourceID     string  `json:"source_id"`
	DocumentID   string  `json:"document_id,omitempty"`
	DocumentName string  `json:"document_name"`
	Source       string  `json:"source"`
	Similarity   float32 `json:"similarity"`
}

type RetrieveResponse struct {
	Results []*RetrievalResultResponse `json:"results"`
}

type AskResponse struct {
	Answer  string                     `json:"answer"`
	Results []*RetrievalResultResponse `json:"results"`
}

func retrievalResultsToResponse(results []*domain.RetrievalResult) []*RetrievalResultResponse {
	responses := make([]*RetrievalResultResponse, len(results))
	for i, r := range results {
		responses[i] = &RetrievalResultResponse{
			Content:      r.Content,
			SourceID:     r.SourceID,
			DocumentID:   r.DocumentID,
			DocumentName: r.DocumentName,
			Source:       string(r.Source),
			Similarity:   r.Similarity,
		}
	}
	return responses
}

func (h *RetrievalHandler) decodeRetrieveInput(w http.ResponseWriter, r *http.Request) (service.RetrieveInput, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return service.RetrieveInput{}, false
	}

	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return service.RetrieveInput{}, false
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return service.RetrieveInput{}, false
	}
	if req.KnowledgeBaseID != "" && len(req.DocumentIDs) > 0 {
		api.Error(w, http.StatusBadRequest, "knowledge_base_id and document_ids are mutually exclusive")
		return service.RetrieveInput{}, false
	}

	return service.RetrieveInput{
		UserID:          userID,
		Query:           req.Query,
		KnowledgeBaseID: req.KnowledgeBaseID,
		DocumentIDs:     req.DocumentIDs,
		Limit:           req.Limit,
	}, true
}

// Retrieve ranks stored chunks against the query without generating an
// answer.
func (h *RetrievalHandler) Retrieve(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeRetrieveInput(w, r)
	if !ok {
		return
	}

	results, err := h.svc.Retrieve(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, RetrieveResponse{
		Results: retrievalResultsToResponse(results),
	})
}

// Ask retrieves context and returns a generated answer alongside it.
func (h *RetrievalHandler) Ask(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeRetrieveInput(w, r)
	if !ok {
		return
	}

	output, err := h.svc.Ask(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, AskResponse{
		Answer:  output.Answer,
		Results: retrievalResultsToResponse(output.Results),
	})
}
