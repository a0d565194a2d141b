package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/privacypilot/internal/audit"
	"github.com/ziadkadry99/privacypilot/internal/inventory"
	"github.com/ziadkadry99/privacypilot/internal/policy"
)

const defaultAuditLimit = 10

func (s *Server) handleGetPolicy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state := s.policy.GetSnapshot()

	var sb strings.Builder
	sb.WriteString("# Consent Policy\n\n")
	for _, c := range policy.Categories() {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", c.Title(), verdict(state.Allows(c))))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleCheckConsent answers the gate question for a single category. Any
// category the policy does not know is reported as blocked.
func (s *Server) handleCheckConsent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: category"), nil
	}

	allowed := false
	label := "unknown"
	if c, ok := policy.ParseCategory(name); ok {
		allowed = s.policy.CheckConsent(c)
		label = string(c)
	}
	s.metrics.IncrementGateCheck(label, allowed)

	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", name, verdict(allowed))), nil
}

func (s *Server) handleListTrackers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := inventory.ListFilter{}
	if name := request.GetString("category", ""); name != "" {
		c, ok := policy.ParseCategory(name)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown category %q", name)), nil
		}
		filter.Category = c
	}

	trackers, err := s.trackers.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing trackers: %v", err)), nil
	}
	if len(trackers) == 0 {
		return mcp.NewToolResultText("No trackers in the inventory."), nil
	}

	state := s.policy.GetSnapshot()
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d tracker(s):\n\n", len(trackers)))
	for _, t := range trackers {
		sb.WriteString(fmt.Sprintf("- %s (%s) [%s] %s\n", t.Name, t.Domain, t.Category, verdict(state.Allows(t.Category))))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleGetAuditTrail(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultAuditLimit)
	if limit <= 0 {
		limit = defaultAuditLimit
	}

	entries, err := s.audit.Query(ctx, audit.QueryFilter{UserID: s.userID, Limit: limit})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("querying audit trail: %v", err)), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No consent decisions recorded yet."), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d decision(s):\n\n", len(entries)))
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("- %s %s (%d active trackers)\n",
			e.Timestamp.UTC().Format("2006-01-02 15:04:05"), e.ConsentChange, len(e.ActiveTrackerIDs)))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func verdict(allowed bool) string {
	if allowed {
		return "ALLOWED"
	}
	return "BLOCKED"
}
