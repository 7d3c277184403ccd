package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/learnd/internal/experiment"
	"github.com/fyrsmithlabs/learnd/internal/insight"
	"github.com/fyrsmithlabs/learnd/internal/interaction"
	"github.com/fyrsmithlabs/learnd/internal/knowledge"
)

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, insight.ErrInsightNotFound),
		errors.Is(err, experiment.ErrExperimentNotFound),
		errors.Is(err, knowledge.ErrDomainNotFound):
		return http.StatusNotFound
	case errors.Is(err, experiment.ErrExperimentClosed),
		errors.Is(err, knowledge.ErrDuplicateDomain):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) fail(c echo.Context, err error) error {
	status := statusFor(err)
	s.logger.Debug("request rejected",
		zap.String("path", c.Path()),
		zap.Int("status", status),
		zap.Error(err),
	)
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}

func notFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, ErrorResponse{Error: msg})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleInteraction feeds one interaction through the learning pipeline.
func (s *Server) handleInteraction(c echo.Context) error {
	var req interaction.Interaction
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid interaction request", zap.Error(err))
		return badRequest(c, "invalid request body")
	}

	// Validate up front so clients get a 400 instead of a silent drop.
	req.Normalize(s.engine.Now())
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	transitions := s.engine.ProcessInteraction(c.Request().Context(), req)
	if transitions == nil {
		transitions = []insight.Transition{}
	}
	return c.JSON(http.StatusAccepted, InteractionResponse{
		InteractionID: req.ID,
		Transitions:   transitions,
	})
}

// handleListInsights lists insights. Query parameters: category (repeatable
// or comma separated), min_confidence, active, limit.
func (s *Server) handleListInsights(c echo.Context) error {
	var categories []insight.Category
	for _, raw := range c.QueryParams()["category"] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			cat, err := insight.ParseCategory(part)
			if err != nil {
				return badRequest(c, err.Error())
			}
			categories = append(categories, cat)
		}
	}

	minConfidence := 0.0
	if v := c.QueryParam("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return badRequest(c, "min_confidence must be a number in [0, 1]")
		}
		minConfidence = f
	}

	activeOnly := true
	if v := c.QueryParam("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest(c, "active must be a boolean")
		}
		activeOnly = b
	}

	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return badRequest(c, "limit must be a non-negative integer")
		}
		limit = n
	}

	insights := s.engine.GetInsights(categories, minConfidence, activeOnly, limit)
	return c.JSON(http.StatusOK, InsightsResponse{Insights: insights, Count: len(insights)})
}

func (s *Server) handleGetInsight(c echo.Context) error {
	ins, ok := s.engine.GetInsight(c.Param("id"))
	if !ok {
		return notFound(c, insight.ErrInsightNotFound.Error())
	}
	return c.JSON(http.StatusOK, ins)
}

func (s *Server) handleListPreferences(c echo.Context) error {
	return c.JSON(http.StatusOK, PreferencesResponse{Preferences: s.engine.AllPreferences()})
}

func (s *Server) handleGetPreference(c echo.Context) error {
	model, ok := s.engine.GetPreferences(c.Param("category"))
	if !ok {
		return notFound(c, "preference category not found")
	}
	return c.JSON(http.StatusOK, model)
}

func (s *Server) handleStartExperiment(c echo.Context) error {
	var req StartExperimentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	exp, err := s.engine.StartExperiment(req.Hypothesis, req.TargetInsightID, req.Category, req.Variants)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, exp)
}

// handleListExperiments lists experiments; ?active=true keeps only running ones.
func (s *Server) handleListExperiments(c echo.Context) error {
	activeOnly := false
	if v := c.QueryParam("active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest(c, "active must be a boolean")
		}
		activeOnly = b
	}
	return c.JSON(http.StatusOK, ExperimentsResponse{Experiments: s.engine.GetExperiments(activeOnly)})
}

func (s *Server) handleGetExperiment(c echo.Context) error {
	exp, ok := s.engine.GetExperiment(c.Param("id"))
	if !ok {
		return notFound(c, experiment.ErrExperimentNotFound.Error())
	}
	return c.JSON(http.StatusOK, exp)
}

func (s *Server) handleRecordResult(c echo.Context) error {
	var req ExperimentResultRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	exp, err := s.engine.RecordExperimentResult(c.Request().Context(), c.Param("id"), req.Variant, req.Success)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, exp)
}

func (s *Server) handleAbortExperiment(c echo.Context) error {
	var req AbortExperimentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	exp, err := s.engine.AbortExperiment(c.Request().Context(), c.Param("id"), req.Reason)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, exp)
}

func (s *Server) handleConcludeExperiment(c echo.Context) error {
	exp, err := s.engine.ConcludeExperiment(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, exp)
}

func (s *Server) handleProcessMemories(c echo.Context) error {
	var req ProcessMemoriesRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.MemoryIDs) == 0 {
		return badRequest(c, "memory_ids is required")
	}
	return c.JSON(http.StatusOK, s.engine.ProcessNewMemories(c.Request().Context(), req.MemoryIDs))
}

func (s *Server) handleListDomains(c echo.Context) error {
	return c.JSON(http.StatusOK, DomainsResponse{Domains: s.engine.GetKnowledgeDomains()})
}

func (s *Server) handleAddDomain(c echo.Context) error {
	var req AddDomainRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	d, err := s.engine.AddKnowledgeDomain(req.Name, req.Description, req.ParentID, req.Keywords)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (s *Server) handleListConnections(c echo.Context) error {
	return c.JSON(http.StatusOK, ConnectionsResponse{Connections: s.engine.GetKnowledgeConnections()})
}

func (s *Server) handleListConcepts(c echo.Context) error {
	return c.JSON(http.StatusOK, ConceptsResponse{Concepts: s.engine.GetSynthesizedConcepts()})
}

// handleSynthesize synthesizes a concept. The engine reports failure as nil,
// which maps to 422.
func (s *Server) handleSynthesize(c echo.Context) error {
	var req SynthesizeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if len(req.MemoryIDs) < 2 {
		return badRequest(c, knowledge.ErrTooFewMemories.Error())
	}
	concept := s.engine.SynthesizeConcept(c.Request().Context(), req.MemoryIDs, req.Name)
	if concept == nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "concept could not be synthesized"})
	}
	return c.JSON(http.StatusCreated, concept)
}

func (s *Server) handleCandidates(c echo.Context) error {
	candidates := s.engine.FindConceptCandidates()
	if candidates == nil {
		candidates = [][]string{}
	}
	return c.JSON(http.StatusOK, CandidatesResponse{Candidates: candidates})
}

func (s *Server) handleListMetaInsights(c echo.Context) error {
	return c.JSON(http.StatusOK, MetaInsightsResponse{Insights: s.engine.GetMetaCognitiveInsights()})
}

func (s *Server) handleGenerateMetaInsights(c echo.Context) error {
	return c.JSON(http.StatusOK, MetaInsightsResponse{Insights: s.engine.GenerateMetaInsights(c.Request().Context())})
}

func (s *Server) handleSaveState(c echo.Context) error {
	ok := s.engine.SaveToMemory(c.Request().Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, StateResponse{OK: ok})
}

func (s *Server) handleLoadState(c echo.Context) error {
	ok := s.engine.LoadFromMemory(c.Request().Context())
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, StateResponse{OK: ok})
}

func (s *Server) handleMaintenance(c echo.Context) error {
	return c.JSON(http.StatusOK, s.engine.Maintain(c.Request().Context()))
}
