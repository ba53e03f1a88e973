package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/document-classifier/internal/core/ports"
)

const (
	serverName    = "document-classifier"
	serverVersion = "1.0.0"
)

// Server exposes classification use cases as MCP tools.
type Server struct {
	files       ports.FileClassifier
	directories ports.DirectoryClassifier
	scheduler   ports.BatchScheduler
	batches     ports.BatchReader
	filesDir    string
	logger      *slog.Logger
}

func NewServer(
	files ports.FileClassifier,
	directories ports.DirectoryClassifier,
	scheduler ports.BatchScheduler,
	batches ports.BatchReader,
	filesDir string,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		files:       files,
		directories: directories,
		scheduler:   scheduler,
		batches:     batches,
		filesDir:    filesDir,
		logger:      logger.With("component", "mcp"),
	}
}

// MCPServer builds the tool registry.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("classify_document",
		mcp.WithDescription("Classify one document (PDF, DOCX, XLSX, JPEG or PNG) into the configured taxonomy."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the document on the server filesystem.")),
	), s.classifyDocument)

	srv.AddTool(mcp.NewTool("classify_directory",
		mcp.WithDescription("Classify every file of a directory through the provider batch API and wait for the results."),
		mcp.WithString("directory", mcp.Description("Directory to classify. Defaults to the configured files directory.")),
	), s.classifyDirectory)

	srv.AddTool(mcp.NewTool("enqueue_batch",
		mcp.WithDescription("Queue a directory for asynchronous batch classification and return the batch record."),
		mcp.WithString("directory", mcp.Description("Directory to classify. Defaults to the configured files directory.")),
	), s.enqueueBatch)

	srv.AddTool(mcp.NewTool("get_batch",
		mcp.WithDescription("Return the status and results of a queued batch."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Batch id returned by enqueue_batch.")),
	), s.getBatch)

	return srv
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer())
}

func (s *Server) classifyDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	classification, err := s.files.ClassifyPath(ctx, path)
	if err != nil {
		s.logger.ErrorContext(ctx, "mcp_tool_failed", "tool", "classify_document", "source_path", path, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"classification": classification})
}

func (s *Server) classifyDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	directory := s.directoryArg(request)
	results, err := s.directories.ClassifyDirectory(ctx, directory)
	if err != nil {
		s.logger.ErrorContext(ctx, "mcp_tool_failed", "tool", "classify_directory", "directory", directory, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"classifications": results})
}

func (s *Server) enqueueBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	directory := s.directoryArg(request)
	record, err := s.scheduler.Enqueue(ctx, directory)
	if err != nil {
		s.logger.ErrorContext(ctx, "mcp_tool_failed", "tool", "enqueue_batch", "directory", directory, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(record)
}

func (s *Server) getBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	record, err := s.batches.GetByID(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(record)
}

func (s *Server) directoryArg(request mcp.CallToolRequest) string {
	directory := strings.TrimSpace(request.GetString("directory", ""))
	if directory == "" {
		return s.filesDir
	}
	return directory
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(raw)), nil
}
