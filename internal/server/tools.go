package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/fdalens/internal/observe"
	"github.com/MrWong99/fdalens/pkg/openfda"
)

// Tool identifiers. These are part of the public protocol surface and
// must stay stable.
const (
	toolSearchEvents  = "search_drug_events"
	toolGetLabelInfo  = "get_drug_label_info"
	toolSearchRecalls = "search_drug_recalls"
)

// ─── Input schemas ───────────────────────────────────────────────────────────

// The schemas are declared explicitly (rather than inferred from the arg
// structs) so descriptions, bounds, patterns, and enum membership are
// visible to the calling LLM.

func eventsInputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"drug_name": {
				Type:        "string",
				Description: "Name of the drug to search for",
			},
			"limit": {
				Type:        "integer",
				Description: "Maximum number of results (1-1000)",
				Minimum:     f64(1),
				Maximum:     f64(1000),
				Default:     json.RawMessage("10"),
			},
			"date_range": {
				Type:        "string",
				Description: "Date range in format YYYYMMDD_to_YYYYMMDD",
				Pattern:     `^\d{8}_to_\d{8}$`,
			},
		},
		Required: []string{"drug_name"},
	}
}

func labelsInputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"drug_name": {
				Type:        "string",
				Description: "Name of the drug to get label information for",
			},
			"limit": {
				Type:        "integer",
				Description: "Maximum number of results",
				Minimum:     f64(1),
				Maximum:     f64(100),
				Default:     json.RawMessage("5"),
			},
		},
		Required: []string{"drug_name"},
	}
}

func recallsInputSchema() *jsonschema.Schema {
	classifications := make([]any, len(openfda.Classifications))
	for i, c := range openfda.Classifications {
		classifications[i] = c
	}
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"drug_name": {
				Type:        "string",
				Description: "Name of the drug to search recalls for",
			},
			"classification": {
				Type:        "string",
				Description: "Recall classification (Class I, Class II, Class III)",
				Enum:        classifications,
			},
			"limit": {
				Type:        "integer",
				Description: "Maximum number of results",
				Minimum:     f64(1),
				Maximum:     f64(100),
				Default:     json.RawMessage("10"),
			},
		},
		Required: []string{"drug_name"},
	}
}

func f64(v float64) *float64 { return &v }

// ─── Argument structs ────────────────────────────────────────────────────────

// Limit is a pointer so an omitted value can fall back to the endpoint
// default while an explicit 0 is rejected as invalid.

type eventsArgs struct {
	DrugName  string `json:"drug_name"`
	Limit     *int   `json:"limit,omitempty"`
	DateRange string `json:"date_range,omitempty"`
}

type labelsArgs struct {
	DrugName string `json:"drug_name"`
	Limit    *int   `json:"limit,omitempty"`
}

type recallsArgs struct {
	DrugName       string `json:"drug_name"`
	Classification string `json:"classification,omitempty"`
	Limit          *int   `json:"limit,omitempty"`
}

// ─── Registration ────────────────────────────────────────────────────────────

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        toolSearchEvents,
		Description: "Search FDA adverse event reports for drugs",
		InputSchema: eventsInputSchema(),
	}, s.handleSearchEvents)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        toolGetLabelInfo,
		Description: "Get drug labeling information from FDA",
		InputSchema: labelsInputSchema(),
	}, s.handleGetLabelInfo)

	mcpsdk.AddTool(s.mcp, &mcpsdk.Tool{
		Name:        toolSearchRecalls,
		Description: "Search FDA drug enforcement/recall reports",
		InputSchema: recallsInputSchema(),
	}, s.handleSearchRecalls)
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func (s *Server) handleSearchEvents(ctx context.Context, _ *mcpsdk.CallToolRequest, args eventsArgs) (*mcpsdk.CallToolResult, any, error) {
	start := time.Now()
	res, err := s.fda.SearchEvents(ctx, openfda.EventQuery{
		DrugName:  args.DrugName,
		Limit:     limitOr(args.Limit, openfda.DefaultEventLimit),
		DateRange: args.DateRange,
	})
	if err != nil {
		return s.toolFailure(ctx, toolSearchEvents, start, err)
	}
	return s.toolSuccess(ctx, toolSearchEvents, start, res)
}

func (s *Server) handleGetLabelInfo(ctx context.Context, _ *mcpsdk.CallToolRequest, args labelsArgs) (*mcpsdk.CallToolResult, any, error) {
	start := time.Now()
	res, err := s.fda.SearchLabels(ctx, openfda.LabelQuery{
		DrugName: args.DrugName,
		Limit:    limitOr(args.Limit, openfda.DefaultLabelLimit),
	})
	if err != nil {
		return s.toolFailure(ctx, toolGetLabelInfo, start, err)
	}
	return s.toolSuccess(ctx, toolGetLabelInfo, start, res)
}

func (s *Server) handleSearchRecalls(ctx context.Context, _ *mcpsdk.CallToolRequest, args recallsArgs) (*mcpsdk.CallToolResult, any, error) {
	start := time.Now()
	res, err := s.fda.SearchRecalls(ctx, openfda.RecallQuery{
		DrugName:       args.DrugName,
		Classification: args.Classification,
		Limit:          limitOr(args.Limit, openfda.DefaultRecallLimit),
	})
	if err != nil {
		return s.toolFailure(ctx, toolSearchRecalls, start, err)
	}
	return s.toolSuccess(ctx, toolSearchRecalls, start, res)
}

// ─── Result helpers ──────────────────────────────────────────────────────────

// toolSuccess marshals res as indented JSON text content.
func (s *Server) toolSuccess(ctx context.Context, tool string, start time.Time, res any) (*mcpsdk.CallToolResult, any, error) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return s.toolFailure(ctx, tool, start, err)
	}
	s.metrics.RecordToolCall(ctx, tool, "ok", time.Since(start).Seconds())
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil, nil
}

// toolFailure relays err to the caller as an MCP tool error. The failure
// kind is preserved in the message so hosts can distinguish a rejected
// argument from an unreachable upstream.
func (s *Server) toolFailure(ctx context.Context, tool string, start time.Time, err error) (*mcpsdk.CallToolResult, any, error) {
	status := "error"
	if kind, ok := openfda.KindOf(err); ok {
		status = kind.String()
	}
	s.metrics.RecordToolCall(ctx, tool, status, time.Since(start).Seconds())
	observe.Logger(ctx).Error("tool call failed", "tool", tool, "err", err)

	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "Error: " + err.Error()}},
	}, nil, nil
}

// limitOr resolves an optional limit argument to the endpoint default.
func limitOr(limit *int, def int) int {
	if limit == nil {
		return def
	}
	return *limit
}
