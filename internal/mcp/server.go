package mcp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/privacypilot/internal/audit"
	"github.com/ziadkadry99/privacypilot/internal/inventory"
	"github.com/ziadkadry99/privacypilot/internal/metrics"
	"github.com/ziadkadry99/privacypilot/internal/policy"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that lets AI agents consult the consent policy
// before acting on a user's behalf.
type Server struct {
	policy   *policy.Store
	trackers *inventory.Store
	audit    *audit.Store
	userID   string
	metrics  *metrics.Metrics
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies. m may be nil.
func NewServer(p *policy.Store, trackers *inventory.Store, auditStore *audit.Store, userID string, m *metrics.Metrics) *Server {
	s := &Server{
		policy:   p,
		trackers: trackers,
		audit:    auditStore,
		userID:   userID,
		metrics:  m,
	}

	s.mcp = server.NewMCPServer(
		"privacypilot",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(getPolicyTool, s.handleGetPolicy)
	s.mcp.AddTool(checkConsentTool, s.handleCheckConsent)
	s.mcp.AddTool(listTrackersTool, s.handleListTrackers)
	s.mcp.AddTool(getAuditTrailTool, s.handleGetAuditTrail)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}

// HTTPHandler returns a streamable HTTP transport for the same tools.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

// RegisterRoutes mounts the streamable HTTP transport at /mcp.
func RegisterRoutes(r chi.Router, s *Server) {
	r.Handle("/mcp", s.HTTPHandler())
}
