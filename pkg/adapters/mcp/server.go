package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/sagalens"
	"github.com/aretw0/sagalens/internal/logging"
	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/aretw0/sagalens/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// SnapshotsURI is the resource exposing the snapshot history.
const SnapshotsURI = "sagalens://snapshots"

// Monitor is the part of the monitor the MCP server inspects.
type Monitor interface {
	Stats() domain.Stats
	Snapshot(id domain.EffectID) (domain.Snapshot, error)
	Tree(id domain.EffectID) ([]domain.FlatEffect, error)
}

// SnapshotList is the structured result of list_snapshots.
type SnapshotList struct {
	Snapshots []domain.Snapshot `json:"snapshots" jsonschema_description:"Completed tasks, oldest first"`
	Total     int               `json:"total" jsonschema_description:"Number of snapshots kept in history"`
}

// EffectTree is the structured result of inspect_effect.
type EffectTree struct {
	Snapshot domain.Snapshot     `json:"snapshot" jsonschema_description:"The effect as it would be shipped now"`
	Tree     []domain.FlatEffect `json:"tree" jsonschema_description:"Every descendant, depth-first"`
}

type listArgs struct {
	Limit int `json:"limit"`
}

type inspectArgs struct {
	EffectID int64 `json:"effect_id"`
}

// Server exposes a monitor to AI agents as an MCP server.
type Server struct {
	monitor   Monitor
	history   ports.SnapshotStore
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance. history may be nil.
func NewServer(monitor Monitor, history ports.SnapshotStore, opts ...Option) *Server {
	s := &Server{
		monitor:   monitor,
		history:   history,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("sagalens-mcp", strings.TrimSpace(sagalens.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves on the given port using SSE until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop MCP server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	listTool := mcp.NewTool("list_snapshots",
		mcp.WithDescription("List the snapshots of completed saga tasks, oldest first."),
		mcp.WithNumber("limit", mcp.Description("Only return the newest N snapshots (optional)")),
		mcp.WithOutputSchema[SnapshotList](),
	)
	s.mcpServer.AddTool(listTool, mcp.NewStructuredToolHandler(s.handleListSnapshots))

	statsTool := mcp.NewTool("monitor_stats",
		mcp.WithDescription("Summarize the effects observed by the monitor and the state of the client connection."),
		mcp.WithOutputSchema[domain.Stats](),
	)
	s.mcpServer.AddTool(statsTool, mcp.NewStructuredToolHandler(s.handleStats))

	inspectTool := mcp.NewTool("inspect_effect",
		mcp.WithDescription("Show one effect and its subtree, whether or not it has completed."),
		mcp.WithNumber("effect_id", mcp.Required(), mcp.Description("Effect id assigned by the saga runtime")),
		mcp.WithOutputSchema[EffectTree](),
	)
	s.mcpServer.AddTool(inspectTool, mcp.NewStructuredToolHandler(s.handleInspect))
}

func (s *Server) handleListSnapshots(ctx context.Context, _ mcp.CallToolRequest, args listArgs) (SnapshotList, error) {
	if s.history == nil {
		return SnapshotList{Snapshots: []domain.Snapshot{}}, nil
	}
	if args.Limit < 0 {
		return SnapshotList{}, errors.New("limit must not be negative")
	}

	snaps, err := s.history.List(ctx, args.Limit)
	if err != nil {
		return SnapshotList{}, fmt.Errorf("list snapshots: %w", err)
	}
	total, err := s.history.Len(ctx)
	if err != nil {
		return SnapshotList{}, fmt.Errorf("count snapshots: %w", err)
	}
	return SnapshotList{Snapshots: snaps, Total: total}, nil
}

func (s *Server) handleStats(_ context.Context, _ mcp.CallToolRequest, _ struct{}) (domain.Stats, error) {
	return s.monitor.Stats(), nil
}

func (s *Server) handleInspect(_ context.Context, _ mcp.CallToolRequest, args inspectArgs) (EffectTree, error) {
	id := domain.EffectID(args.EffectID)
	snap, err := s.monitor.Snapshot(id)
	if err != nil {
		return EffectTree{}, err
	}
	tree, err := s.monitor.Tree(id)
	if err != nil {
		return EffectTree{}, err
	}
	return EffectTree{Snapshot: snap, Tree: tree}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(SnapshotsURI, "Completed Saga Tasks",
		mcp.WithMIMEType("application/json"),
	), s.readSnapshots)
}

func (s *Server) readSnapshots(ctx context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	list, err := s.handleListSnapshots(ctx, mcp.CallToolRequest{}, listArgs{})
	if err != nil {
		return nil, err
	}
	jsonBytes, err := json.Marshal(list.Snapshots)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshots: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      SnapshotsURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
