package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *APIClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *APIClient) *Handlers {
	return &Handlers{client: client}
}

// HandleGeneratePlan runs one sampling request end to end.
func (h *Handlers) HandleGeneratePlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clientID := req.GetString("client_id", "")
	if clientID == "" {
		return mcp.NewToolResultError("client_id is required"), nil
	}
	fiscalYear, ok := argNumber(req, "fiscal_year")
	if !ok {
		return mcp.NewToolResultError("fiscal_year is required"), nil
	}

	body := map[string]any{
		"clientId":   clientID,
		"fiscalYear": int(fiscalYear),
	}
	setString(body, req, "test_type", "testType")
	setString(body, req, "method", "method")
	setString(body, req, "risk_level", "riskLevel")
	setNumber(body, req, "materiality", "materiality")
	setNumber(body, req, "expected_misstatement", "expectedMisstatement")
	setNumber(body, req, "confidence_level", "confidenceLevel")
	setNumber(body, req, "tolerable_deviation_rate", "tolerableDeviationRate")
	setNumber(body, req, "expected_deviation_rate", "expectedDeviationRate")
	setNumber(body, req, "threshold_amount", "thresholdAmount")
	if seed, ok := argNumber(req, "seed"); ok {
		body["seed"] = int64(seed)
	}
	if v, ok := argBool(req, "use_high_risk_inclusion"); ok {
		body["useHighRiskInclusion"] = v
	}
	if v, ok := argBool(req, "save"); ok {
		body["save"] = v
	}

	raw, err := h.client.GeneratePlan(ctx, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to generate plan: %v", err)), nil
	}

	text, err := formatPlanResult(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse plan: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandlePreviewSize computes a recommended sample size from aggregates.
func (h *Handlers) HandlePreviewSize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	popSize, ok := argNumber(req, "population_size")
	if !ok {
		return mcp.NewToolResultError("population_size is required"), nil
	}

	body := map[string]any{
		"populationSize": int(popSize),
	}
	setString(body, req, "test_type", "testType")
	setString(body, req, "risk_level", "riskLevel")
	setNumber(body, req, "population_sum", "populationSum")
	setNumber(body, req, "materiality", "materiality")
	setNumber(body, req, "expected_misstatement", "expectedMisstatement")
	setNumber(body, req, "confidence_level", "confidenceLevel")
	setNumber(body, req, "tolerable_deviation_rate", "tolerableDeviationRate")
	setNumber(body, req, "expected_deviation_rate", "expectedDeviationRate")

	raw, err := h.client.PreviewSize(ctx, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to preview size: %v", err)), nil
	}

	text, err := formatSizePreview(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse preview: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGetPlan fetches a persisted plan with its items.
func (h *Handlers) HandleGetPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	planID := req.GetString("plan_id", "")
	if planID == "" {
		return mcp.NewToolResultError("plan_id is required"), nil
	}

	raw, err := h.client.GetPlan(ctx, planID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get plan: %v", err)), nil
	}

	text, err := formatPlanDetail(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse plan: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleListPlans lists a client's persisted plans.
func (h *Handlers) HandleListPlans(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	clientID := req.GetString("client_id", "")
	if clientID == "" {
		return mcp.NewToolResultError("client_id is required"), nil
	}
	limit := 0
	if v, ok := argNumber(req, "limit"); ok {
		limit = int(v)
	}

	raw, err := h.client.ListPlans(ctx, clientID, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list plans: %v", err)), nil
	}

	text, err := formatPlanList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse plans: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleEngineHealth reports the sampling engine's health.
func (h *Handlers) HandleEngineHealth(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.EngineHealth(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check health: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// --- argument helpers ---

func argNumber(req mcp.CallToolRequest, key string) (float64, bool) {
	if v, ok := req.GetArguments()[key]; ok {
		if f, ok := v.(float64); ok {
			return f, true
		}
	}
	return 0, false
}

func argBool(req mcp.CallToolRequest, key string) (bool, bool) {
	if v, ok := req.GetArguments()[key]; ok {
		if b, ok := v.(bool); ok {
			return b, true
		}
	}
	return false, false
}

func setString(body map[string]any, req mcp.CallToolRequest, arg, field string) {
	if v := req.GetString(arg, ""); v != "" {
		body[field] = v
	}
}

func setNumber(body map[string]any, req mcp.CallToolRequest, arg, field string) {
	if v, ok := argNumber(req, arg); ok {
		body[field] = v
	}
}

// --- formatters ---

type planView struct {
	ID                    string  `json:"id"`
	ClientID              string  `json:"clientId"`
	FiscalYear            int     `json:"fiscalYear"`
	TestType              string  `json:"testType"`
	Method                string  `json:"method"`
	PopulationSize        int     `json:"populationSize"`
	PopulationSum         float64 `json:"populationSum"`
	RecommendedSampleSize int     `json:"recommendedSampleSize"`
	ActualSampleSize      int     `json:"actualSampleSize"`
	CoveragePercentage    float64 `json:"coveragePercentage"`
	Notes                 string  `json:"notes"`
	Metadata              struct {
		Seed             int64 `json:"seed"`
		HighRiskIncluded int   `json:"highRiskIncluded"`
	} `json:"metadata"`
}

type sampleView struct {
	ID              string  `json:"id"`
	TransactionDate string  `json:"transactionDate"`
	AccountNumber   string  `json:"accountNumber"`
	Description     string  `json:"description"`
	Amount          float64 `json:"amount"`
	RiskScore       float64 `json:"riskScore"`
}

const maxListedItems = 15

func writePlanSummary(sb *strings.Builder, plan planView) {
	fmt.Fprintf(sb, "Plan %s (%s)\n", plan.ID, plan.Notes)
	fmt.Fprintf(sb, "  Client: %s, fiscal year %d\n", plan.ClientID, plan.FiscalYear)
	fmt.Fprintf(sb, "  Test: %s, method: %s\n", plan.TestType, plan.Method)
	fmt.Fprintf(sb, "  Population: %d transactions, %.2f total\n", plan.PopulationSize, plan.PopulationSum)
	fmt.Fprintf(sb, "  Sample: %d selected (recommended %d), %.2f%% value coverage\n",
		plan.ActualSampleSize, plan.RecommendedSampleSize, plan.CoveragePercentage)
	fmt.Fprintf(sb, "  Seed: %d\n", plan.Metadata.Seed)
	if plan.Metadata.HighRiskIncluded > 0 {
		fmt.Fprintf(sb, "  High-risk force-included: %d\n", plan.Metadata.HighRiskIncluded)
	}
}

func formatPlanResult(raw json.RawMessage) (string, error) {
	var resp struct {
		Plan   planView     `json:"plan"`
		Sample []sampleView `json:"sample"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected plan response format")
	}

	var sb strings.Builder
	writePlanSummary(&sb, resp.Plan)

	sb.WriteString("\nSelected transactions:\n")
	for i, tx := range resp.Sample {
		if i == maxListedItems {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(resp.Sample)-maxListedItems)
			break
		}
		fmt.Fprintf(&sb, "  %d. %s  %s  %s  %.2f (risk %.2f)\n",
			i+1, tx.ID, tx.TransactionDate, tx.AccountNumber, tx.Amount, tx.RiskScore)
	}
	return sb.String(), nil
}

func formatSizePreview(raw json.RawMessage) (string, error) {
	var resp struct {
		RecommendedSampleSize int     `json:"recommendedSampleSize"`
		PopulationSize        int     `json:"populationSize"`
		TestType              string  `json:"testType"`
		ConfidenceLevel       float64 `json:"confidenceLevel"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected preview response format")
	}

	return fmt.Sprintf(
		"Recommended sample size: %d\n  Population: %d transactions\n  Test type: %s\n  Confidence: %.0f%%\n",
		resp.RecommendedSampleSize, resp.PopulationSize, resp.TestType, resp.ConfidenceLevel), nil
}

func formatPlanDetail(raw json.RawMessage) (string, error) {
	var resp struct {
		Plan  planView `json:"plan"`
		Items []struct {
			TransactionID   string  `json:"transactionId"`
			TransactionDate string  `json:"transactionDate"`
			AccountNumber   string  `json:"accountNumber"`
			Amount          float64 `json:"amount"`
			RiskScore       float64 `json:"riskScore"`
			IsHighRisk      bool    `json:"isHighRisk"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected plan response format")
	}

	var sb strings.Builder
	writePlanSummary(&sb, resp.Plan)

	sb.WriteString("\nSample items:\n")
	for i, item := range resp.Items {
		if i == maxListedItems {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(resp.Items)-maxListedItems)
			break
		}
		flag := ""
		if item.IsHighRisk {
			flag = "  [high risk]"
		}
		fmt.Fprintf(&sb, "  %d. %s  %s  %s  %.2f (risk %.2f)%s\n",
			i+1, item.TransactionID, item.TransactionDate, item.AccountNumber,
			item.Amount, item.RiskScore, flag)
	}
	return sb.String(), nil
}

func formatPlanList(raw json.RawMessage) (string, error) {
	var resp struct {
		Plans   []planView `json:"plans"`
		HasMore bool       `json:"hasMore"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("unexpected plans response format")
	}

	if len(resp.Plans) == 0 {
		return "No plans found.", nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d plan(s):\n\n", len(resp.Plans))
	for i, plan := range resp.Plans {
		fmt.Fprintf(&sb, "%d. %s  %s  FY%d  %s  %d items, %.2f%% coverage\n",
			i+1, plan.ID, plan.Notes, plan.FiscalYear, plan.Method,
			plan.ActualSampleSize, plan.CoveragePercentage)
	}
	if resp.HasMore {
		sb.WriteString("\nMore plans available; raise the limit to see them.\n")
	}
	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}
