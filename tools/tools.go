// Package tools exposes the bookmark operations as a catalog of
// agent-callable tools. Each tool carries a name, a description, and a
// JSON schema for its arguments; Dispatch routes an invocation to the
// bookmark service and returns raw JSON for the agent layer to render.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/linkhoard/linkhoard/bookmarks"
)

// Tool describes one agent-callable operation.
type Tool struct {
	// Name is the unique tool identifier, e.g. "bookmarks_list".
	Name string

	// Description tells the agent what the tool does.
	Description string

	// InputSchema is a JSON-schema document describing the arguments.
	InputSchema json.RawMessage

	run func(ctx context.Context, args json.RawMessage) (any, error)
}

// Registry holds the tool catalog.
type Registry struct {
	tools map[string]Tool
}

// ErrUnknownTool is returned by Dispatch for names not in the catalog.
type ErrUnknownTool struct {
	Name string
}

func (e *ErrUnknownTool) Error() string {
	return fmt.Sprintf("tools: unknown tool %q", e.Name)
}

// NewRegistry builds the catalog over the given bookmark service.
func NewRegistry(svc *bookmarks.Service) *Registry {
	r := &Registry{tools: make(map[string]Tool)}

	r.register(Tool{
		Name:        "bookmarks_list",
		Description: "List bookmarks, optionally filtered by search query, tag, or unread status.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query":  {"type": "string", "description": "Free-text search term"},
				"tag":    {"type": "string", "description": "Only bookmarks carrying this tag"},
				"unread": {"type": "boolean", "description": "Only unread bookmarks"},
				"limit":  {"type": "integer", "minimum": 1},
				"offset": {"type": "integer", "minimum": 0}
			}
		}`),
		run: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Query  string `json:"query"`
				Tag    string `json:"tag"`
				Unread bool   `json:"unread"`
				Limit  int    `json:"limit"`
				Offset int    `json:"offset"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return svc.List(ctx, bookmarks.ListOptions{
				Query:  in.Query,
				Tag:    in.Tag,
				Unread: in.Unread,
				Limit:  in.Limit,
				Offset: in.Offset,
			})
		},
	})

	r.register(Tool{
		Name:        "bookmarks_get",
		Description: "Fetch a single bookmark by its numeric ID.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"id": {"type": "integer"}},
			"required": ["id"]
		}`),
		run: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				ID int64 `json:"id"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return svc.Get(ctx, in.ID)
		},
	})

	r.register(Tool{
		Name:        "bookmarks_create",
		Description: "Save a new bookmark.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url":         {"type": "string"},
				"title":       {"type": "string"},
				"description": {"type": "string"},
				"notes":       {"type": "string"},
				"tags":        {"type": "array", "items": {"type": "string"}},
				"unread":      {"type": "boolean"}
			},
			"required": ["url"]
		}`),
		run: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in bookmarks.CreateRequest
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return svc.Create(ctx, in)
		},
	})

	r.register(Tool{
		Name:        "bookmarks_update",
		Description: "Update fields of an existing bookmark; omitted fields are left unchanged.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"id":          {"type": "integer"},
				"url":         {"type": "string"},
				"title":       {"type": "string"},
				"description": {"type": "string"},
				"notes":       {"type": "string"},
				"tags":        {"type": "array", "items": {"type": "string"}},
				"archived":    {"type": "boolean"},
				"unread":      {"type": "boolean"}
			},
			"required": ["id"]
		}`),
		run: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				ID int64 `json:"id"`
				bookmarks.UpdateRequest
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return svc.Update(ctx, in.ID, in.UpdateRequest)
		},
	})

	r.register(Tool{
		Name:        "bookmarks_delete",
		Description: "Delete a bookmark by its numeric ID.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"id": {"type": "integer"}},
			"required": ["id"]
		}`),
		run: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				ID int64 `json:"id"`
			}
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			if err := svc.Delete(ctx, in.ID); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": in.ID}, nil
		},
	})

	r.register(Tool{
		Name:        "tags_list",
		Description: "List all tags with their usage counts.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		run: func(ctx context.Context, args json.RawMessage) (any, error) {
			return svc.ListTags(ctx)
		},
	})

	return r
}

func (r *Registry) register(t Tool) {
	r.tools[t.Name] = t
}

// Tools returns the catalog sorted by name.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch invokes the named tool with JSON arguments and returns the
// JSON-encoded result.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	tool, ok := r.tools[name]
	if !ok {
		return nil, &ErrUnknownTool{Name: name}
	}

	result, err := tool.run(ctx, args)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("tools: encode %s result: %w", name, err)
	}
	return data, nil
}

func decodeArgs(args json.RawMessage, out any) error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, out); err != nil {
		return fmt.Errorf("tools: invalid arguments: %w", err)
	}
	return nil
}
