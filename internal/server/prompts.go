package server

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Prompt identifiers. Part of the public protocol surface.
const (
	promptAnalyzeSafety  = "analyze_drug_safety"
	promptDrugComparison = "drug_comparison"
)

const safetyAnalysisTemplate = `Please analyze the safety profile of %s focusing on %s.

Use the FDA MCP server tools to gather comprehensive data:

1. Search for adverse event reports for %[1]s
2. Get drug labeling information for %[1]s
3. Check for any recalls or enforcement actions for %[1]s

Based on this data, provide:
- Summary of reported adverse events and their frequency
- Analysis of warnings and precautions from labeling
- Any recall history and reasons
- Risk-benefit assessment
- Recommendations for monitoring

Please ensure your analysis is evidence-based and cite specific FDA data sources.`

const drugComparisonTemplate = `Please compare the safety profiles of the following drugs: %s

For each drug, use the FDA MCP server tools to gather:
1. Adverse event data
2. Drug labeling information
3. Recall history

Create a comparative analysis including:
- Side effect profiles comparison
- Relative safety rankings
- Different risk factors for each drug
- Contraindications and warnings comparison
- Historical recall patterns

Present the comparison in a clear, structured format that helps understand the relative risks and benefits of each medication.`

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(&mcpsdk.Prompt{
		Name:        promptAnalyzeSafety,
		Description: "Analyze drug safety data from FDA reports",
		Arguments: []*mcpsdk.PromptArgument{
			{
				Name:        "drug_name",
				Description: "Name of the drug to analyze",
				Required:    true,
			},
			{
				Name:        "focus_area",
				Description: "Specific safety aspect to focus on (side_effects, recalls, interactions)",
				Required:    false,
			},
		},
	}, s.handleAnalyzeSafety)

	s.mcp.AddPrompt(&mcpsdk.Prompt{
		Name:        promptDrugComparison,
		Description: "Compare safety profiles of multiple drugs",
		Arguments: []*mcpsdk.PromptArgument{
			{
				Name:        "drug_list",
				Description: "Comma-separated list of drugs to compare",
				Required:    true,
			},
		},
	}, s.handleDrugComparison)
}

func (s *Server) handleAnalyzeSafety(ctx context.Context, req *mcpsdk.GetPromptRequest) (*mcpsdk.GetPromptResult, error) {
	drugName := req.Params.Arguments["drug_name"]
	if drugName == "" {
		return nil, fmt.Errorf("server: prompt %s requires a drug_name argument", promptAnalyzeSafety)
	}
	focusArea := req.Params.Arguments["focus_area"]
	if focusArea == "" {
		focusArea = "general safety"
	}

	s.metrics.RecordPromptRender(ctx, promptAnalyzeSafety)
	return &mcpsdk.GetPromptResult{
		Description: fmt.Sprintf("Safety analysis prompt for %s", drugName),
		Messages: []*mcpsdk.PromptMessage{{
			Role:    "user",
			Content: &mcpsdk.TextContent{Text: fmt.Sprintf(safetyAnalysisTemplate, drugName, focusArea)},
		}},
	}, nil
}

func (s *Server) handleDrugComparison(ctx context.Context, req *mcpsdk.GetPromptRequest) (*mcpsdk.GetPromptResult, error) {
	drugList := req.Params.Arguments["drug_list"]
	if drugList == "" {
		return nil, fmt.Errorf("server: prompt %s requires a drug_list argument", promptDrugComparison)
	}

	drugs := make([]string, 0)
	for _, d := range strings.Split(drugList, ",") {
		if d = strings.TrimSpace(d); d != "" {
			drugs = append(drugs, d)
		}
	}
	joined := strings.Join(drugs, ", ")

	s.metrics.RecordPromptRender(ctx, promptDrugComparison)
	return &mcpsdk.GetPromptResult{
		Description: fmt.Sprintf("Comparative analysis prompt for: %s", joined),
		Messages: []*mcpsdk.PromptMessage{{
			Role:    "user",
			Content: &mcpsdk.TextContent{Text: fmt.Sprintf(drugComparisonTemplate, joined)},
		}},
	}, nil
}
