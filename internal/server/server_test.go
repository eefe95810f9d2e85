package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/fdalens/pkg/openfda"
)

// ─── Fixtures ─────────────────────────────────────────────────────────────────

const eventsFixture = `{
  "meta": {"results": {"skip": 0, "limit": 10, "total": 1245}},
  "results": [
    {
      "safetyreportid": "10003301",
      "receivedate": "20240215",
      "serious": "1",
      "patient": {
        "patientonsetage": "58",
        "patientsex": "2",
        "reaction": [{"reactionmeddrapt": "Nausea"}],
        "drug": [{"medicinalproduct": "ASPIRIN", "drugindication": "PAIN"}]
      }
    },
    {
      "safetyreportid": "10003302",
      "receivedate": "20240301",
      "serious": "2",
      "patient": {
        "reaction": [{"reactionmeddrapt": "Headache"}],
        "drug": [{"medicinalproduct": "ASPIRIN"}]
      }
    }
  ]
}`

const labelsFixture = `{
  "meta": {"results": {"skip": 0, "limit": 5, "total": 87}},
  "results": [
    {
      "openfda": {
        "brand_name": ["BAYER ASPIRIN"],
        "generic_name": ["ASPIRIN"]
      },
      "indications_and_usage": ["For the temporary relief of minor aches and pains."]
    }
  ]
}`

const recallsFixture = `{
  "meta": {"results": {"skip": 0, "limit": 10, "total": 3}},
  "results": [
    {
      "recall_number": "D-1234-2024",
      "product_description": "Valsartan Tablets, 160 mg",
      "reason_for_recall": "NDMA impurity",
      "classification": "Class II",
      "status": "Ongoing",
      "recall_initiation_date": "20240110",
      "recalling_firm": "Example Pharma Inc",
      "distribution_pattern": "Nationwide"
    }
  ]
}`

// fixtureHandler serves canned openFDA responses per dataset path and
// records the query string of the last request to each.
type fixtureHandler struct {
	mu        sync.Mutex
	lastQuery map[string]string
	status    int
}

func (h *fixtureHandler) query(path string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	q, ok := h.lastQuery[path]
	return q, ok
}

func (h *fixtureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.lastQuery[r.URL.Path] = r.URL.RawQuery
	h.mu.Unlock()
	if h.status != 0 {
		w.WriteHeader(h.status)
		return
	}
	switch r.URL.Path {
	case "/drug/event.json":
		w.Write([]byte(eventsFixture))
	case "/drug/label.json":
		w.Write([]byte(labelsFixture))
	case "/drug/enforcement.json":
		w.Write([]byte(recallsFixture))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// newTestSession connects an in-memory MCP client to a Server backed by a
// fixture upstream.
func newTestSession(t *testing.T, fh *fixtureHandler) *mcpsdk.ClientSession {
	t.Helper()
	if fh.lastQuery == nil {
		fh.lastQuery = make(map[string]string)
	}

	upstream := httptest.NewServer(fh)
	t.Cleanup(upstream.Close)

	fda := openfda.New(
		openfda.WithBaseURL(upstream.URL),
		openfda.WithMaxAttempts(1),
	)
	srv := New(fda)

	ctx := context.Background()
	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	serverSession, err := srv.mcp.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "fdalens-test", Version: "0.0.1"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { clientSession.Close() })

	return clientSession
}

// textOf extracts the single text content of a tool result.
func textOf(t *testing.T, res *mcpsdk.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("len(Content) = %d, want 1", len(res.Content))
	}
	tc, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("content is %T, want *TextContent", res.Content[0])
	}
	return tc.Text
}

// ─── Tools ────────────────────────────────────────────────────────────────────

func TestListTools(t *testing.T) {
	t.Parallel()
	session := newTestSession(t, &fixtureHandler{})

	found := map[string]bool{}
	for tool, err := range session.Tools(context.Background(), nil) {
		if err != nil {
			t.Fatalf("Tools: %v", err)
		}
		found[tool.Name] = true
	}
	for _, want := range []string{toolSearchEvents, toolGetLabelInfo, toolSearchRecalls} {
		if !found[want] {
			t.Errorf("tool %q not listed (got %v)", want, found)
		}
	}
}

func TestCallSearchEvents(t *testing.T) {
	t.Parallel()
	fh := &fixtureHandler{}
	session := newTestSession(t, fh)

	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      toolSearchEvents,
		Arguments: map[string]any{"drug_name": "aspirin", "limit": 10},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("IsError = true: %s", textOf(t, res))
	}

	var payload openfda.EventsResult
	if err := json.Unmarshal([]byte(textOf(t, res)), &payload); err != nil {
		t.Fatalf("tool output is not valid JSON: %v", err)
	}
	if payload.TotalResults != 1245 || len(payload.Events) != 2 {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Events[1].PatientSex != "Unknown" {
		t.Errorf("PatientSex = %q, want Unknown", payload.Events[1].PatientSex)
	}

	if q, _ := fh.query("/drug/event.json"); !strings.Contains(q, "limit=10") {
		t.Errorf("upstream query = %q, want limit=10", q)
	}
}

func TestCallToolOmittedLimitUsesDefault(t *testing.T) {
	t.Parallel()
	fh := &fixtureHandler{}
	session := newTestSession(t, fh)

	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      toolGetLabelInfo,
		Arguments: map[string]any{"drug_name": "aspirin"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("IsError = true: %s", textOf(t, res))
	}
	if q, _ := fh.query("/drug/label.json"); !strings.Contains(q, "limit=5") {
		t.Errorf("upstream query = %q, want the endpoint default limit=5", q)
	}
}

func TestCallToolZeroLimitRejected(t *testing.T) {
	t.Parallel()
	fh := &fixtureHandler{}
	session := newTestSession(t, fh)

	// Rejected either by schema validation or by the query builder; in no
	// case may the upstream be contacted.
	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      toolSearchEvents,
		Arguments: map[string]any{"drug_name": "aspirin", "limit": 0},
	})
	if err == nil && !res.IsError {
		t.Error("limit 0 should fail, got a successful result")
	}
	if q, hit := fh.query("/drug/event.json"); hit {
		t.Errorf("upstream was contacted with %q", q)
	}
}

func TestCallRecallsWithClassification(t *testing.T) {
	t.Parallel()
	fh := &fixtureHandler{}
	session := newTestSession(t, fh)

	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name: toolSearchRecalls,
		Arguments: map[string]any{
			"drug_name":      "valsartan",
			"classification": "Class II",
			"limit":          10,
		},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("IsError = true: %s", textOf(t, res))
	}

	var payload openfda.RecallsResult
	if err := json.Unmarshal([]byte(textOf(t, res)), &payload); err != nil {
		t.Fatalf("tool output is not valid JSON: %v", err)
	}
	if len(payload.Recalls) != 1 || payload.Recalls[0].Classification != "Class II" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestCallToolUnknownClassificationRejected(t *testing.T) {
	t.Parallel()
	fh := &fixtureHandler{}
	session := newTestSession(t, fh)

	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name: toolSearchRecalls,
		Arguments: map[string]any{
			"drug_name":      "valsartan",
			"classification": "Class IV",
			"limit":          10,
		},
	})
	if err == nil && !res.IsError {
		t.Error("unknown classification should fail, got a successful result")
	}
	if _, hit := fh.query("/drug/enforcement.json"); hit {
		t.Error("upstream was contacted for an invalid classification")
	}
}

func TestCallToolUpstreamFailureIsErrorResult(t *testing.T) {
	t.Parallel()
	fh := &fixtureHandler{status: http.StatusInternalServerError}
	session := newTestSession(t, fh)

	res, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      toolSearchEvents,
		Arguments: map[string]any{"drug_name": "aspirin", "limit": 10},
	})
	if err != nil {
		t.Fatalf("upstream failures should surface as tool errors, got transport error: %v", err)
	}
	if !res.IsError {
		t.Fatal("IsError = false, want true")
	}
	if text := textOf(t, res); !strings.HasPrefix(text, "Error:") {
		t.Errorf("error text = %q, want Error: prefix", text)
	}
}

// ─── Resources ────────────────────────────────────────────────────────────────

func TestReadCannedResources(t *testing.T) {
	t.Parallel()
	session := newTestSession(t, &fixtureHandler{})

	for _, uri := range []string{resourceRecentEvents, resourcePopularLabels, resourceRecentRecalls} {
		res, err := session.ReadResource(context.Background(), &mcpsdk.ReadResourceParams{URI: uri})
		if err != nil {
			t.Fatalf("ReadResource(%s): %v", uri, err)
		}
		if len(res.Contents) != 1 {
			t.Fatalf("%s: len(Contents) = %d, want 1", uri, len(res.Contents))
		}
		c := res.Contents[0]
		if c.URI != uri || c.MIMEType != resourceMIMEType {
			t.Errorf("%s: contents = %+v", uri, c)
		}
		if !json.Valid([]byte(c.Text)) {
			t.Errorf("%s: contents are not valid JSON", uri)
		}
	}
}

func TestReadLabelLookupTemplate(t *testing.T) {
	t.Parallel()
	fh := &fixtureHandler{}
	session := newTestSession(t, fh)

	uri := labelTemplatePrefix + "aspirin"
	res, err := session.ReadResource(context.Background(), &mcpsdk.ReadResourceParams{URI: uri})
	if err != nil {
		t.Fatalf("ReadResource: %v", err)
	}

	var payload openfda.LabelsResult
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &payload); err != nil {
		t.Fatalf("contents are not valid JSON: %v", err)
	}
	if payload.TotalResults != 87 {
		t.Errorf("TotalResults = %d, want 87", payload.TotalResults)
	}
	if q, _ := fh.query("/drug/label.json"); !strings.Contains(q, "aspirin") {
		t.Errorf("upstream query = %q, want an aspirin search", q)
	}
}

func TestReadLabelLookupUnescapesName(t *testing.T) {
	t.Parallel()
	fh := &fixtureHandler{}
	session := newTestSession(t, fh)

	uri := labelTemplatePrefix + "multi%20vitamin"
	if _, err := session.ReadResource(context.Background(), &mcpsdk.ReadResourceParams{URI: uri}); err != nil {
		t.Fatalf("ReadResource: %v", err)
	}
	q, _ := fh.query("/drug/label.json")
	if !strings.Contains(q, "multi+vitamin") && !strings.Contains(q, "multi%20vitamin") {
		t.Errorf("upstream query = %q, want the unescaped name", q)
	}
}

func TestReadUnknownResource(t *testing.T) {
	t.Parallel()
	session := newTestSession(t, &fixtureHandler{})

	_, err := session.ReadResource(context.Background(), &mcpsdk.ReadResourceParams{URI: "fda://nope"})
	if err == nil {
		t.Error("expected error for unknown resource URI, got nil")
	}
}

// ─── Prompts ──────────────────────────────────────────────────────────────────

func TestGetAnalyzeSafetyPrompt(t *testing.T) {
	t.Parallel()
	session := newTestSession(t, &fixtureHandler{})

	res, err := session.GetPrompt(context.Background(), &mcpsdk.GetPromptParams{
		Name:      promptAnalyzeSafety,
		Arguments: map[string]string{"drug_name": "aspirin"},
	})
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	if len(res.Messages) != 1 || res.Messages[0].Role != "user" {
		t.Fatalf("messages = %+v", res.Messages)
	}

	text := res.Messages[0].Content.(*mcpsdk.TextContent).Text
	if !strings.Contains(text, "safety profile of aspirin") {
		t.Errorf("prompt text missing the drug name:\n%s", text)
	}
	// focus_area defaults when omitted.
	if !strings.Contains(text, "general safety") {
		t.Errorf("prompt text missing the default focus area:\n%s", text)
	}
}

func TestGetAnalyzeSafetyPromptWithFocusArea(t *testing.T) {
	t.Parallel()
	session := newTestSession(t, &fixtureHandler{})

	res, err := session.GetPrompt(context.Background(), &mcpsdk.GetPromptParams{
		Name:      promptAnalyzeSafety,
		Arguments: map[string]string{"drug_name": "warfarin", "focus_area": "interactions"},
	})
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	text := res.Messages[0].Content.(*mcpsdk.TextContent).Text
	if !strings.Contains(text, "focusing on interactions") {
		t.Errorf("prompt text missing the focus area:\n%s", text)
	}
}

func TestGetAnalyzeSafetyPromptRequiresDrugName(t *testing.T) {
	t.Parallel()
	session := newTestSession(t, &fixtureHandler{})

	_, err := session.GetPrompt(context.Background(), &mcpsdk.GetPromptParams{
		Name:      promptAnalyzeSafety,
		Arguments: map[string]string{},
	})
	if err == nil {
		t.Error("expected error for missing drug_name, got nil")
	}
}

func TestGetDrugComparisonPrompt(t *testing.T) {
	t.Parallel()
	session := newTestSession(t, &fixtureHandler{})

	res, err := session.GetPrompt(context.Background(), &mcpsdk.GetPromptParams{
		Name:      promptDrugComparison,
		Arguments: map[string]string{"drug_list": " aspirin ,ibuprofen,  naproxen "},
	})
	if err != nil {
		t.Fatalf("GetPrompt: %v", err)
	}
	text := res.Messages[0].Content.(*mcpsdk.TextContent).Text
	if !strings.Contains(text, "aspirin, ibuprofen, naproxen") {
		t.Errorf("prompt text should carry the normalised drug list:\n%s", text)
	}
}
