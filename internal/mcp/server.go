// Package mcp exposes the bridge inspection API as MCP tools
package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/unred/signal-bridge/internal/api"
)

// SignalMCPServer provides MCP tools for watching and acknowledging signals
type SignalMCPServer struct {
	server *mcp.Server
	client *Client
}

// NewServer creates a new MCP server backed by the inspection API
func NewServer(client *Client, version string) *SignalMCPServer {
	s := &SignalMCPServer{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "signal-bridge",
			Version: version,
		}, nil),
		client: client,
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the client disconnects or ctx ends
func (s *SignalMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *SignalMCPServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "signal_latest",
		Description: "Get the oldest signal waiting for delivery. ok is false when the queue is empty.",
	}, s.handleLatest)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "signal_ack",
		Description: "Acknowledge a pending signal so it is removed from the delivery queue. Pass key, or chat_id and message_id.",
	}, s.handleAck)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "signal_health",
		Description: "Check that the bridge is running and list the chats it listens to.",
	}, s.handleHealth)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "signal_queue",
		Description: "List every signal waiting for delivery, oldest first.",
	}, s.handleQueue)
}

// EmptyInput is used by tools without arguments
type EmptyInput struct{}

// AckInput is the input for signal_ack
type AckInput struct {
	Key       string `json:"key,omitempty" jsonschema:"queue key in the form chat_id:message_id"`
	ChatID    *int64 `json:"chat_id,omitempty" jsonschema:"chat id of the signal, used with message_id"`
	MessageID *int64 `json:"message_id,omitempty" jsonschema:"message id of the signal, used with chat_id"`
}

func (s *SignalMCPServer) handleLatest(ctx context.Context, req *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, api.LatestResponse, error) {
	out, err := s.client.Latest(ctx)
	if err != nil {
		return nil, api.LatestResponse{}, err
	}
	return nil, *out, nil
}

func (s *SignalMCPServer) handleAck(ctx context.Context, req *mcp.CallToolRequest, input AckInput) (*mcp.CallToolResult, api.AckResponse, error) {
	out, err := s.client.Ack(ctx, api.AckRequest{
		ChatID:    input.ChatID,
		MessageID: input.MessageID,
		Key:       input.Key,
	})
	if err != nil {
		return nil, api.AckResponse{}, err
	}
	return nil, *out, nil
}

func (s *SignalMCPServer) handleHealth(ctx context.Context, req *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, api.HealthResponse, error) {
	out, err := s.client.Health(ctx)
	if err != nil {
		return nil, api.HealthResponse{}, err
	}
	return nil, *out, nil
}

func (s *SignalMCPServer) handleQueue(ctx context.Context, req *mcp.CallToolRequest, _ EmptyInput) (*mcp.CallToolResult, api.QueueResponse, error) {
	out, err := s.client.Queue(ctx)
	if err != nil {
		return nil, api.QueueResponse{}, err
	}
	return nil, *out, nil
}
