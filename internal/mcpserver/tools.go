package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the ledgersample MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolGeneratePlan = mcp.NewTool("generate_sampling_plan",
	mcp.WithDescription(
		"Generate a statistical audit sampling plan for a client's ledger transactions. "+
			"Computes a defensible sample size (monetary unit sampling for substantive tests, "+
			"attribute sampling for control tests) and selects concrete transactions. "+
			"Pass a seed to make the selection reproducible; set save to persist the plan."),
	mcp.WithString("client_id",
		mcp.Required(),
		mcp.Description("The client whose ledger to sample")),
	mcp.WithNumber("fiscal_year",
		mcp.Required(),
		mcp.Description("Fiscal year of the population, e.g. 2025")),
	mcp.WithString("test_type",
		mcp.Description("'substantive' (monetary misstatement testing, default) or 'control' (compliance testing)"),
		mcp.Enum("substantive", "control")),
	mcp.WithString("method",
		mcp.Description("Selection algorithm: 'srs' (simple random, default), 'systematic', 'mus' (monetary unit), 'stratified', or 'threshold'"),
		mcp.Enum("srs", "systematic", "mus", "stratified", "threshold")),
	mcp.WithNumber("materiality",
		mcp.Description("Overall materiality in the ledger currency (required for a statistical substantive size)")),
	mcp.WithNumber("expected_misstatement",
		mcp.Description("Expected misstatement in the ledger currency")),
	mcp.WithNumber("confidence_level",
		mcp.Description("Confidence level percentage: 90, 95 (default), or 99")),
	mcp.WithString("risk_level",
		mcp.Description("Assessed control risk for control tests: 'low', 'moderate', or 'high'"),
		mcp.Enum("low", "moderate", "high")),
	mcp.WithNumber("tolerable_deviation_rate",
		mcp.Description("Tolerable deviation rate percentage for control tests, e.g. 3")),
	mcp.WithNumber("expected_deviation_rate",
		mcp.Description("Expected deviation rate percentage for control tests, e.g. 2")),
	mcp.WithNumber("threshold_amount",
		mcp.Description("Amount above which every transaction is tested (required for method 'threshold')")),
	mcp.WithNumber("seed",
		mcp.Description("Random seed for reproducible selection; omit for a clock-based seed")),
	mcp.WithBoolean("use_high_risk_inclusion",
		mcp.Description("Force-include transactions the risk scorer flags as high risk")),
	mcp.WithBoolean("save",
		mcp.Description("Persist the plan and its sample items for the audit file")),
)

var ToolPreviewSize = mcp.NewTool("preview_sample_size",
	mcp.WithDescription(
		"Compute the recommended sample size from population aggregates without fetching "+
			"any transactions. Useful for planning before the ledger data is loaded."),
	mcp.WithNumber("population_size",
		mcp.Required(),
		mcp.Description("Number of transactions in the population")),
	mcp.WithNumber("population_sum",
		mcp.Description("Total monetary value of the population (needed for substantive sizing)")),
	mcp.WithString("test_type",
		mcp.Description("'substantive' (default) or 'control'"),
		mcp.Enum("substantive", "control")),
	mcp.WithNumber("materiality",
		mcp.Description("Overall materiality in the ledger currency")),
	mcp.WithNumber("expected_misstatement",
		mcp.Description("Expected misstatement in the ledger currency")),
	mcp.WithNumber("confidence_level",
		mcp.Description("Confidence level percentage: 90, 95 (default), or 99")),
	mcp.WithString("risk_level",
		mcp.Description("Assessed control risk: 'low', 'moderate', or 'high'"),
		mcp.Enum("low", "moderate", "high")),
	mcp.WithNumber("tolerable_deviation_rate",
		mcp.Description("Tolerable deviation rate percentage for control tests")),
	mcp.WithNumber("expected_deviation_rate",
		mcp.Description("Expected deviation rate percentage for control tests")),
)

var ToolGetPlan = mcp.NewTool("get_sampling_plan",
	mcp.WithDescription(
		"Fetch a persisted sampling plan with its selected sample items by plan ID."),
	mcp.WithString("plan_id",
		mcp.Required(),
		mcp.Description("The plan ID, e.g. 'plan_a1b2c3'")),
)

var ToolListPlans = mcp.NewTool("list_sampling_plans",
	mcp.WithDescription(
		"List a client's persisted sampling plans, newest first."),
	mcp.WithString("client_id",
		mcp.Required(),
		mcp.Description("The client whose plans to list")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of plans to return (default 20)")),
)

var ToolEngineHealth = mcp.NewTool("check_engine_health",
	mcp.WithDescription(
		"Check the sampling engine's health, including whether plan persistence is "+
			"available and a summary of the most recently generated plan."),
)
