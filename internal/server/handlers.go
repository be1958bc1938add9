package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/retail-analyst/server/internal/agent/model"
	"github.com/retail-analyst/server/internal/analyst"
	errx "github.com/retail-analyst/server/internal/core/error"
	logx "github.com/retail-analyst/server/pkg/logger"
	"github.com/retail-analyst/server/pkg/metrics"
)

const maxBodyBytes = 1 << 20

type AnalysisRequest struct {
	AnalysisType   string `json:"analysis_type"`
	CustomQuestion string `json:"custom_question,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type AnalysisResponse struct {
	Result         string `json:"result"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type toolDescription struct {
	Name string `json:"name"`
	Desc string `json:"description"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := errx.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Detail: errx.PublicMessage(err)})
}

func decode(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errx.Invalid(errx.ErrInvalidInput, "read body: %v", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errx.Invalid(errx.ErrInvalidInput, "invalid JSON body")
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	ds := s.deps.Store.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"dataset":         ds.Name(),
		"rows":            ds.Len(),
		"dataset_version": s.deps.Store.Version(),
	})
}

// analyze serves the canned analyses and custom questions. A custom question
// with a conversation_id is answered in that conversation and bypasses the cache.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if req.ConversationID != "" && strings.EqualFold(strings.TrimSpace(req.AnalysisType), analyst.CustomAnalysis) {
		if strings.TrimSpace(req.CustomQuestion) == "" {
			writeError(w, errx.Invalid(errx.ErrInvalidInput, "custom question is required for custom analysis"))
			return
		}
		result, err := s.deps.Analyst.AnalyzeConversation(r.Context(), req.ConversationID, req.CustomQuestion)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, AnalysisResponse{Result: result, ConversationID: req.ConversationID})
		return
	}

	result, err := s.deps.Facades.Dispatch(r.Context(), req.AnalysisType, req.CustomQuestion)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AnalysisResponse{Result: result})
}

func (s *Server) listAnalyses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Facades.List())
}

func (s *Server) newConversation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"conversation_id": uuid.NewString()})
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	infos, err := s.deps.Tools.Infos(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]toolDescription, 0, len(infos))
	for _, info := range infos {
		out = append(out, toolDescription{Name: info.Name, Desc: info.Desc})
	}
	writeJSON(w, http.StatusOK, out)
}

// invokeTool runs one analytical tool directly, without the model.
func (s *Server) invokeTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, errx.Invalid(errx.ErrInvalidInput, "read body: %v", err))
		return
	}

	out, err := s.deps.Tools.Invoke(r.Context(), name, string(body))
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	var res model.ToolResult
	if err := json.Unmarshal([]byte(out), &res); err == nil && res.Failed() {
		status = errx.StatusForKindName(res.Kind)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, out)
}

func (s *Server) reloadDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := s.deps.Store.Reload()
	if err != nil {
		metrics.DatasetReloads.WithLabelValues("error").Inc()
		var ae *errx.AppError
		if !errors.As(err, &ae) {
			err = errx.Load(errx.ErrParse, "%v", err)
		}
		writeError(w, err)
		return
	}
	metrics.DatasetReloads.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"dataset":         ds.Name(),
		"rows":            ds.Len(),
		"dataset_version": s.deps.Store.Version(),
	})
}
