// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the recipe operations as tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/recipebox/internal/apperr"
	"github.com/starford/recipebox/internal/recipeservice"
)

const formatURI = "recipebox://recipe-format"

// Server wraps the MCP server with recipe tools.
type Server struct {
	mcp   *server.MCPServer
	svc   *recipeservice.Service
	token string
}

// New creates an MCP server. Mutating tools authenticate with token.
func New(svc *recipeservice.Service, token, version string) *Server {
	s := &Server{svc: svc, token: token}

	s.mcp = server.NewMCPServer(
		"recipebox",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_recipes",
		mcp.WithDescription("List every stored recipe as a JSON array, in stored order."),
	), s.listRecipes)

	s.mcp.AddTool(mcp.NewTool("upsert_recipe",
		mcp.WithDescription("Create a recipe, or replace the stored recipe with the same id. "+
			"Read the format first via get_recipe_format or the "+formatURI+" resource."),
		mcp.WithString("recipe", mcp.Required(), mcp.Description("Recipe as a JSON object")),
		mcp.WithString("image", mcp.Description("Optional image as a base64 data URI (png, jpeg, gif, webp)")),
		mcp.WithString("filename", mcp.Description("Optional original file name for the image")),
	), s.upsertRecipe)

	s.mcp.AddTool(mcp.NewTool("delete_recipe",
		mcp.WithDescription("Delete every recipe with the given id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Recipe id")),
	), s.deleteRecipe)

	s.mcp.AddTool(mcp.NewTool("copy_recipe",
		mcp.WithDescription("Append a copy of the recipe with the given id under a fresh id."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Recipe id to copy")),
	), s.copyRecipe)

	s.mcp.AddTool(mcp.NewTool("get_recipe_format",
		mcp.WithDescription("Returns the recipe object format."),
	), s.getRecipeFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Recipe Format",
			mcp.WithResourceDescription("Shape of the recipe objects stored by recipebox."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

func (s *Server) listRecipes(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recipes, err := s.svc.List(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(recipes)
}

func (s *Server) upsertRecipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("recipe")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var image *recipeservice.Upload
	if uri := req.GetString("image", ""); uri != "" {
		image, err = imageUpload(uri, req.GetString("filename", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	recipe, err := s.svc.Upsert(ctx, s.token, []byte(raw), image)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(recipe)
}

func (s *Server) deleteRecipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, s.token, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("Recipe deleted successfully."), nil
}

func (s *Server) copyRecipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dup, err := s.svc.Copy(ctx, s.token, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(dup)
}

func (s *Server) getRecipeFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecipeFormat), nil
}

func (s *Server) readFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     RecipeFormat,
		},
	}, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(strings.TrimSuffix(buf.String(), "\n")), nil
}

// toolError reports err with the same client messages the HTTP API uses.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		return mcp.NewToolResultError("Unauthorized.")
	case errors.Is(err, apperr.ErrInvalidPayload):
		return mcp.NewToolResultError("Invalid recipe data.")
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("Recipe not found.")
	case errors.Is(err, apperr.ErrStorageRead):
		slog.Error("mcp: tool failed", slog.String("error", err.Error()))
		return mcp.NewToolResultError("Error reading recipes.")
	default:
		slog.Error("mcp: tool failed", slog.String("error", err.Error()))
		return mcp.NewToolResultError("Error saving recipe.")
	}
}
