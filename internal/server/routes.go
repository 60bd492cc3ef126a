// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mnemo Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/mnemo-dev/mnemo/internal/memory"
	mnemoerr "github.com/mnemo-dev/mnemo/pkg/errors"
)

// Services holds the memory services the routes delegate to.
type Services struct {
	Searcher *memory.Searcher
	Indexer  *memory.Indexer
}

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	// Memory endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "search-memory",
		Method:      http.MethodGet,
		Path:        "/api/v1/memory/search",
		Summary:     "Search a user's memories",
		Tags:        []string{"memory"},
	}, s.handleSearchMemory)

	// Index endpoints
	huma.Register(s.api, huma.Operation{
		OperationID: "run-indexing",
		Method:      http.MethodPost,
		Path:        "/api/v1/index/runs",
		Summary:     "Run an indexing pass over pending chunks",
		Tags:        []string{"index"},
	}, s.handleRunIndexing)
}

// --- Request/Response types for huma ---

type searchMemoryInput struct {
	UserID string `query:"user_id" required:"true" doc:"User whose memories to search"`
	Query  string `query:"q" required:"true" minLength:"1" doc:"Search query text"`
	K      int    `query:"k" doc:"Maximum number of results (default 5)"`
}
type searchMemoryOutput struct {
	Body struct {
		Results []memory.Snippet `json:"results"`
	}
}

type runIndexingInput struct {
	Body struct {
		BatchSize int `json:"batch_size,omitempty" minimum:"0" doc:"Chunks per embedding batch (default 50)"`
	}
}
type runIndexingOutput struct {
	Body struct {
		Processed int `json:"processed" doc:"Number of chunks embedded and indexed"`
	}
}

// --- Handlers ---

// handleSearchMemory never fails on retrieval problems: the searcher degrades
// every internal failure to an empty result set.
func (s *Server) handleSearchMemory(ctx context.Context, input *searchMemoryInput) (*searchMemoryOutput, error) {
	snippets := s.services.Searcher.Search(ctx, input.UserID, input.Query, input.K)
	if snippets == nil {
		snippets = []memory.Snippet{}
	}

	out := &searchMemoryOutput{}
	out.Body.Results = snippets
	return out, nil
}

func (s *Server) handleRunIndexing(ctx context.Context, input *runIndexingInput) (*runIndexingOutput, error) {
	processed, err := s.services.Indexer.ProcessPending(ctx, input.Body.BatchSize)
	if err != nil {
		return nil, huma.NewError(mnemoerr.HTTPStatus(err), "indexing run failed", err)
	}

	out := &runIndexingOutput{}
	out.Body.Processed = processed
	return out, nil
}
