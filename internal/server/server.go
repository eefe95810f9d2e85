// Package server exposes the openFDA query pipelines over the Model
// Context Protocol using the official MCP Go SDK.
//
// The server registers three tools (search_drug_events,
// get_drug_label_info, search_drug_recalls), three canned resources plus
// a label-lookup resource template, and two prompt templates. Routing,
// schema validation, and transport framing are delegated to the SDK; the
// handlers here only translate MCP arguments into [openfda] queries and
// marshal the results back.
package server

import (
	"context"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/fdalens/internal/observe"
	"github.com/MrWong99/fdalens/pkg/openfda"
)

const (
	serverName    = "fda-drug-approvals"
	serverVersion = "1.0.0"
)

// Server binds the openFDA client to the MCP protocol surface.
type Server struct {
	fda     *openfda.Client
	mcp     *mcpsdk.Server
	metrics *observe.Metrics
}

// Option is a functional option for [New].
type Option func(*Server)

// WithMetrics injects a metrics instance; without it the package-level
// default instruments are used.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server with all tools, resources, and prompts registered.
func New(fda *openfda.Client, opts ...Option) *Server {
	s := &Server{fda: fda}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}

	s.mcp = mcpsdk.NewServer(
		&mcpsdk.Implementation{Name: serverName, Version: serverVersion},
		&mcpsdk.ServerOptions{
			Instructions: "Query FDA drug safety data via openFDA: adverse event reports, product labeling, and recall/enforcement actions.",
		},
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// Run serves MCP over stdio until ctx is cancelled or the host closes the
// stream.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcpsdk.StdioTransport{})
}

// Handler returns the streamable-HTTP handler for mounting on an HTTP mux.
func (s *Server) Handler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(
		func(*http.Request) *mcpsdk.Server { return s.mcp },
		nil,
	)
}
