// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the workspace tree to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/lattice/internal/apperr"
	"github.com/starford/lattice/internal/models"
	"github.com/starford/lattice/internal/tree"
	"github.com/starford/lattice/internal/treeservice"
)

const guideURI = "lattice://tree-guide"

// Server wraps the MCP server with workspace tools.
type Server struct {
	mcp *server.MCPServer
	svc *treeservice.Service
}

// New creates a new MCP server with all workspace tools registered.
func New(svc *treeservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Lattice",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	kindArg := mcp.WithString("kind", mcp.Required(),
		mcp.Description("Tree kind: api, scheduler or database"))

	s.mcp.AddTool(mcp.NewTool("get_tree",
		mcp.WithDescription("Return one kind's workspace tree as nested JSON nodes."),
		kindArg,
		mcp.WithString("query", mcp.Description("Optional case-insensitive name filter")),
	), s.getTree)

	s.mcp.AddTool(mcp.NewTool("create_folder",
		mcp.WithDescription("Create a folder, appended after its last sibling."),
		kindArg,
		mcp.WithString("name", mcp.Required(), mcp.Description("Folder name")),
		mcp.WithString("parent", mcp.Description("Parent folder id (empty for a root folder)")),
	), s.createFolder)

	s.mcp.AddTool(mcp.NewTool("create_item",
		mcp.WithDescription("Create an item (endpoint, job or table), appended after its last sibling."),
		kindArg,
		mcp.WithString("name", mcp.Required(), mcp.Description("Item name")),
		mcp.WithString("parent", mcp.Description("Parent folder id (empty for the root)")),
	), s.createItem)

	s.mcp.AddTool(mcp.NewTool("move_node",
		mcp.WithDescription("Move a node relative to a target. Read "+guideURI+
			" or call get_tree_guide for the rules; rejected moves report applied: false."),
		kindArg,
		mcp.WithString("drag", mcp.Required(), mcp.Description("Id of the node to move")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Id of the drop target")),
		mcp.WithString("position", mcp.Required(), mcp.Enum("before", "after", "onto"),
			mcp.Description("Where to drop relative to the target")),
	), s.moveNode)

	s.mcp.AddTool(mcp.NewTool("delete_folder",
		mcp.WithDescription("Delete a folder together with everything nested in it."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Folder id")),
	), s.deleteFolder)

	s.mcp.AddTool(mcp.NewTool("delete_item",
		mcp.WithDescription("Delete an item."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id")),
	), s.deleteItem)

	s.mcp.AddTool(mcp.NewTool("search",
		mcp.WithDescription("Search folder and item names."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("kind", mcp.Description("Optional kind to restrict the search")),
	), s.search)

	s.mcp.AddTool(mcp.NewTool("breadcrumb",
		mcp.WithDescription("Return the folder path from the root down to a node."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Folder or item id")),
	), s.breadcrumb)

	s.mcp.AddTool(mcp.NewTool("get_tree_guide",
		mcp.WithDescription("Returns the workspace tree rules. "+
			"Call this before moving nodes to understand which drops are accepted."),
	), s.getTreeGuide)

	// Resource: tree guide.
	s.mcp.AddResource(
		mcp.NewResource(guideURI, "Workspace Tree Guide",
			mcp.WithResourceDescription("How folders, items and moves work in the workspace tree."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTreeGuideResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func errorResult(err error, id string) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id))
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError(fmt.Sprintf("already exists: %s", id))
	}
	return mcp.NewToolResultError(err.Error())
}

func requireKind(req mcp.CallToolRequest) (models.Kind, error) {
	raw, err := req.RequireString("kind")
	if err != nil {
		return "", err
	}
	return treeservice.ParseKind(raw)
}

func (s *Server) getTree(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := requireKind(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	view, err := s.svc.Tree(ctx, kind, req.GetString("query", ""), nil)
	if err != nil {
		return errorResult(err, string(kind)), nil
	}
	return jsonResult(view), nil
}

func (s *Server) createInput(req mcp.CallToolRequest) (treeservice.CreateInput, error) {
	kind, err := requireKind(req)
	if err != nil {
		return treeservice.CreateInput{}, err
	}
	name, err := req.RequireString("name")
	if err != nil {
		return treeservice.CreateInput{}, err
	}
	return treeservice.CreateInput{Name: name, Parent: req.GetString("parent", ""), Kind: kind}, nil
}

func (s *Server) createFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := s.createInput(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := s.svc.CreateFolder(ctx, in)
	if err != nil {
		return errorResult(err, in.Parent), nil
	}
	return jsonResult(f), nil
}

func (s *Server) createItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := s.createInput(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	it, err := s.svc.CreateItem(ctx, in)
	if err != nil {
		return errorResult(err, in.Parent), nil
	}
	return jsonResult(it), nil
}

func (s *Server) moveNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := requireKind(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var d tree.Drop
	if d.DragID, err = req.RequireString("drag"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if d.TargetID, err = req.RequireString("target"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pos, err := req.RequireString("position")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d.Position = tree.Position(pos)

	applied, err := s.svc.Move(ctx, kind, d)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]bool{"applied": applied}), nil
}

func (s *Server) deleteFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.svc.DeleteFolder(ctx, id); err != nil {
		return errorResult(err, id), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) deleteItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.DeleteItem(ctx, id); err != nil {
		return errorResult(err, id), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", id)), nil
}

func (s *Server) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var kind models.Kind
	if raw := req.GetString("kind", ""); raw != "" {
		if kind, err = treeservice.ParseKind(raw); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	hits, err := s.svc.Search(ctx, kind, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) breadcrumb(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	crumbs, err := s.svc.Breadcrumb(ctx, id)
	if err != nil {
		return errorResult(err, id), nil
	}
	return jsonResult(crumbs), nil
}

func (s *Server) getTreeGuide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TreeGuide), nil
}

func (s *Server) readTreeGuideResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     TreeGuide,
		},
	}, nil
}
