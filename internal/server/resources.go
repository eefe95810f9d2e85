package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/fdalens/internal/observe"
	"github.com/MrWong99/fdalens/pkg/openfda"
)

// Resource identifiers. Part of the public protocol surface.
const (
	resourceRecentEvents  = "fda://drug-events/recent"
	resourcePopularLabels = "fda://drug-labels/popular"
	resourceRecentRecalls = "fda://recalls/recent"

	// labelTemplate serves a label summary for a caller-chosen drug.
	labelTemplate       = "fda://drug-labels/by-name/{drug_name}"
	labelTemplatePrefix = "fda://drug-labels/by-name/"
)

const resourceMIMEType = "application/json"

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcpsdk.Resource{
		URI:         resourceRecentEvents,
		Name:        "Recent Drug Adverse Events",
		Description: "Recent adverse event reports from FDA",
		MIMEType:    resourceMIMEType,
	}, s.handleResource)

	s.mcp.AddResource(&mcpsdk.Resource{
		URI:         resourcePopularLabels,
		Name:        "Popular Drug Labels",
		Description: "Labeling information for commonly searched drugs",
		MIMEType:    resourceMIMEType,
	}, s.handleResource)

	s.mcp.AddResource(&mcpsdk.Resource{
		URI:         resourceRecentRecalls,
		Name:        "Recent Drug Recalls",
		Description: "Recent drug recalls and enforcement actions",
		MIMEType:    resourceMIMEType,
	}, s.handleResource)

	s.mcp.AddResourceTemplate(&mcpsdk.ResourceTemplate{
		URITemplate: labelTemplate,
		Name:        "Drug Label Lookup",
		Description: "Labeling summary for a specific drug by name",
		MIMEType:    resourceMIMEType,
	}, s.handleLabelLookup)
}

// handleResource serves the three canned resources.
func (s *Server) handleResource(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
	uri := req.Params.URI

	var (
		data json.RawMessage
		err  error
	)
	switch uri {
	case resourceRecentEvents:
		data, err = s.fda.RecentEvents(ctx)
	case resourcePopularLabels:
		data, err = s.fda.PopularLabels(ctx)
	case resourceRecentRecalls:
		data, err = s.fda.RecentRecalls(ctx)
	default:
		err = fmt.Errorf("unknown resource URI %q", uri)
	}
	if err != nil {
		s.metrics.RecordResourceRead(ctx, uri, "error")
		observe.Logger(ctx).Error("resource read failed", "uri", uri, "err", err)
		return nil, fmt.Errorf("server: read resource %q: %w", uri, err)
	}

	s.metrics.RecordResourceRead(ctx, uri, "ok")
	return resourceResult(uri, data)
}

// handleLabelLookup serves the fda://drug-labels/by-name/{drug_name}
// template with the endpoint's default result limit.
func (s *Server) handleLabelLookup(ctx context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
	uri := req.Params.URI

	escaped := strings.TrimPrefix(uri, labelTemplatePrefix)
	drugName, err := url.PathUnescape(escaped)
	if err != nil {
		drugName = escaped
	}

	res, err := s.fda.SearchLabels(ctx, openfda.LabelQuery{
		DrugName: drugName,
		Limit:    openfda.DefaultLabelLimit,
	})
	if err != nil {
		s.metrics.RecordResourceRead(ctx, labelTemplate, "error")
		observe.Logger(ctx).Error("resource read failed", "uri", uri, "err", err)
		return nil, fmt.Errorf("server: read resource %q: %w", uri, err)
	}

	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("server: encode resource %q: %w", uri, err)
	}
	s.metrics.RecordResourceRead(ctx, labelTemplate, "ok")
	return resourceResult(uri, data)
}

// resourceResult wraps data as indented JSON text contents.
func resourceResult(uri string, data json.RawMessage) (*mcpsdk.ReadResourceResult, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, fmt.Errorf("server: indent resource %q: %w", uri, err)
	}
	return &mcpsdk.ReadResourceResult{
		Contents: []*mcpsdk.ResourceContents{{
			URI:      uri,
			MIMEType: resourceMIMEType,
			Text:     buf.String(),
		}},
	}, nil
}
