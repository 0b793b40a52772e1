package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/listener/pkg/model"
	"github.com/m-mizutani/listener/pkg/usecase/analytics"
	"github.com/m-mizutani/listener/pkg/usecase/chat"
	"github.com/m-mizutani/listener/pkg/utils/logging"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	SessionID model.SessionID `json:"session_id"`
	Reply     string          `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := model.SessionID(chi.URLParam(r, "sessionID"))

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := logging.With(r.Context(), s.logger)
	session, err := chat.New(ctx, chat.NewInput{
		Repo:      s.repo,
		Gemini:    s.gemini,
		SessionID: sessionID,
	})
	if err != nil {
		s.logger.Error("failed to open chat session", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to open session")
		return
	}

	reply, err := session.Send(ctx, req.Message)
	if err != nil {
		s.logger.Error("chat turn failed", "session_id", sessionID, "error", err)
		respondError(w, http.StatusBadGateway, "failed to generate reply")
		return
	}

	respondJSON(w, http.StatusOK, chatResponse{SessionID: sessionID, Reply: reply})
}

type conversationResponse struct {
	SessionID model.SessionID `json:"session_id"`
	CreatedAt time.Time       `json:"created_at"`
	Messages  []model.Message `json:"messages"`
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := model.SessionID(chi.URLParam(r, "sessionID"))

	conv, err := s.repo.GetConversation(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, model.ErrConversationNotFound) {
			respondError(w, http.StatusNotFound, "conversation not found")
			return
		}
		s.logger.Error("failed to load conversation", "session_id", sessionID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	respondJSON(w, http.StatusOK, conversationResponse{
		SessionID: conv.SessionID,
		CreatedAt: conv.CreatedAt,
		Messages:  conv.Messages,
	})
}

func (s *Server) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.repo.ListTags(r.Context())
	if err != nil {
		s.logger.Error("failed to list tags", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	if tags == nil {
		tags = []string{}
	}
	respondJSON(w, http.StatusOK, map[string][]string{"tags": tags})
}

type registerTagRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRegisterTag(w http.ResponseWriter, r *http.Request) {
	var req registerTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.repo.RegisterTag(r.Context(), req.Name); err != nil {
		if errors.Is(err, model.ErrInvalidTagName) {
			respondError(w, http.StatusBadRequest, "invalid tag name")
			return
		}
		s.logger.Error("failed to register tag", "name", req.Name, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to register tag")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type analyticsBin struct {
	Period        time.Time      `json:"period"`
	Conversations int            `json:"conversations"`
	Tags          map[string]int `json:"tags"`
}

type analyticsResponse struct {
	Timeframe     model.Timeframe   `json:"timeframe"`
	Granularity   model.Granularity `json:"granularity"`
	Conversations int               `json:"conversations"`
	Classified    int               `json:"classified"`
	Bins          []analyticsBin    `json:"bins"`
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	timeframe := model.Timeframe(r.URL.Query().Get("timeframe"))
	if timeframe == "" {
		timeframe = model.TimeframeAllTime
	}
	granularity := model.Granularity(r.URL.Query().Get("granularity"))
	if granularity == "" {
		granularity = model.GranularityDay
	}
	if err := timeframe.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid timeframe")
		return
	}
	if err := granularity.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid granularity")
		return
	}

	ctx := logging.With(r.Context(), s.logger)

	// Catch up on any conversations the chat surface saved since the last
	// dashboard load. Failures here never surface to the viewer.
	if _, err := s.pipeline.ProcessUnclassified(ctx); err != nil {
		s.logger.Warn("tag pipeline run failed", "error", err)
	}

	timestamps, err := s.analytics.LoadConversations(ctx, timeframe)
	if err != nil {
		s.logger.Error("failed to load conversations", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}

	tagged, err := s.analytics.LoadTagged(ctx, timeframe)
	if err != nil {
		s.logger.Error("failed to load tagged conversations", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}

	counts := analytics.BinByPeriod(timestamps, granularity)
	tagCounts := analytics.BinTagsByPeriod(tagged, granularity)

	periods := make([]time.Time, 0, len(counts))
	for period := range counts {
		periods = append(periods, period)
	}
	for period := range tagCounts {
		if _, ok := counts[period]; !ok {
			periods = append(periods, period)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	bins := make([]analyticsBin, 0, len(periods))
	for _, period := range periods {
		tags := tagCounts[period]
		if tags == nil {
			tags = map[string]int{}
		}
		bins = append(bins, analyticsBin{
			Period:        period,
			Conversations: counts[period],
			Tags:          tags,
		})
	}

	respondJSON(w, http.StatusOK, analyticsResponse{
		Timeframe:     timeframe,
		Granularity:   granularity,
		Conversations: len(timestamps),
		Classified:    len(tagged),
		Bins:          bins,
	})
}
