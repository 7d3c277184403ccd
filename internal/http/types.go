package http

import (
	"github.com/fyrsmithlabs/learnd/internal/engine"
	"github.com/fyrsmithlabs/learnd/internal/experiment"
	"github.com/fyrsmithlabs/learnd/internal/insight"
	"github.com/fyrsmithlabs/learnd/internal/knowledge"
	"github.com/fyrsmithlabs/learnd/internal/preference"
	"github.com/fyrsmithlabs/learnd/internal/reflection"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// InteractionResponse is the response body for POST /api/v1/interactions.
type InteractionResponse struct {
	InteractionID string               `json:"interaction_id"`
	Transitions   []insight.Transition `json:"transitions"`
}

// InsightsResponse is the response body for GET /api/v1/insights.
type InsightsResponse struct {
	Insights []insight.Insight `json:"insights"`
	Count    int               `json:"count"`
}

// PreferencesResponse is the response body for GET /api/v1/preferences.
type PreferencesResponse struct {
	Preferences []preference.Model `json:"preferences"`
}

// StartExperimentRequest is the request body for POST /api/v1/experiments.
type StartExperimentRequest struct {
	Hypothesis      string   `json:"hypothesis"`
	TargetInsightID string   `json:"target_insight_id,omitempty"`
	Category        string   `json:"category"`
	Variants        []string `json:"variants"`
}

// ExperimentResultRequest is the request body for
// POST /api/v1/experiments/:id/results.
type ExperimentResultRequest struct {
	Variant string `json:"variant"`
	Success bool   `json:"success"`
}

// AbortExperimentRequest is the request body for
// POST /api/v1/experiments/:id/abort.
type AbortExperimentRequest struct {
	Reason string `json:"reason"`
}

// ExperimentsResponse is the response body for GET /api/v1/experiments.
type ExperimentsResponse struct {
	Experiments []experiment.Experiment `json:"experiments"`
}

// ProcessMemoriesRequest is the request body for POST /api/v1/memories/process.
type ProcessMemoriesRequest struct {
	MemoryIDs []string `json:"memory_ids"`
}

// ProcessMemoriesResponse is the response body for POST /api/v1/memories/process.
type ProcessMemoriesResponse = engine.BatchResult

// AddDomainRequest is the request body for POST /api/v1/knowledge/domains.
type AddDomainRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ParentID    string   `json:"parent_id,omitempty"`
	Keywords    []string `json:"keywords"`
}

// DomainsResponse is the response body for GET /api/v1/knowledge/domains.
type DomainsResponse struct {
	Domains []knowledge.Domain `json:"domains"`
}

// ConnectionsResponse is the response body for GET /api/v1/knowledge/connections.
type ConnectionsResponse struct {
	Connections []knowledge.Connection `json:"connections"`
}

// SynthesizeRequest is the request body for POST /api/v1/knowledge/concepts.
type SynthesizeRequest struct {
	MemoryIDs []string `json:"memory_ids"`
	Name      string   `json:"name,omitempty"`
}

// ConceptsResponse is the response body for GET /api/v1/knowledge/concepts.
type ConceptsResponse struct {
	Concepts []knowledge.Concept `json:"concepts"`
}

// CandidatesResponse is the response body for GET /api/v1/knowledge/candidates.
type CandidatesResponse struct {
	Candidates [][]string `json:"candidates"`
}

// MetaInsightsResponse is the response body for the reflection endpoints.
type MetaInsightsResponse struct {
	Insights []reflection.MetaInsight `json:"insights"`
}

// StateResponse is the response body for the state save and load endpoints.
type StateResponse struct {
	OK bool `json:"ok"`
}

// MaintenanceResponse is the response body for POST /api/v1/maintenance.
type MaintenanceResponse = engine.MaintenanceResult
