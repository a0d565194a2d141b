package mcp

import "github.com/mark3labs/mcp-go/mcp"

var getPolicyTool = mcp.NewTool("get_policy",
	mcp.WithDescription("Get the user's current consent state for every tracking category."),
)

// checkConsentTool is the gate agents call before running tracking code.
var checkConsentTool = mcp.NewTool("check_consent",
	mcp.WithDescription("Check whether the user currently allows a tracking category. Unknown categories are never allowed."),
	mcp.WithString("category",
		mcp.Required(),
		mcp.Description("Tracking category to check"),
		mcp.Enum("necessary", "functional", "analytics", "personalization", "marketing"),
	),
)

var listTrackersTool = mcp.NewTool("list_trackers",
	mcp.WithDescription("List the trackers in the site inventory and whether each is currently allowed."),
	mcp.WithString("category",
		mcp.Description("Only list trackers in this category"),
		mcp.Enum("necessary", "functional", "analytics", "personalization", "marketing"),
	),
)

var getAuditTrailTool = mcp.NewTool("get_audit_trail",
	mcp.WithDescription("Get the user's most recent consent decisions, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of entries to return (default 10)"),
	),
)
