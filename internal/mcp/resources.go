package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) catalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	c, err := h.ds.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, c)
}

func (h *handlers) export(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	snap, err := h.ds.Export(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp export", "error", err)
		return nil, err
	}
	return jsonResource(req.Params.URI, snap)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
