package gateway

import (
	"context"
	"encoding/json"
)

// Well-known Gateway methods. Payload shapes are owned by the Gateway;
// callers decode the raw JSON they care about.
const (
	MethodSessionsList = "sessions.list"
	MethodAgentsCreate = "agents.create"
	MethodNodeDescribe = "node.describe"
	MethodChatSend     = "chat.send"
)

// ListSessions returns the Gateway's current session list.
func (c *Client) ListSessions(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, MethodSessionsList, nil)
}

// CreateAgent asks the Gateway to provision an agent from raw params.
func (c *Client) CreateAgent(ctx context.Context, params any) (json.RawMessage, error) {
	return c.Call(ctx, MethodAgentsCreate, params)
}

// DescribeNode returns the Gateway's node description.
func (c *Client) DescribeNode(ctx context.Context) (json.RawMessage, error) {
	return c.Call(ctx, MethodNodeDescribe, nil)
}

// SendChat forwards one chat payload to the Gateway.
func (c *Client) SendChat(ctx context.Context, params any) (json.RawMessage, error) {
	return c.Call(ctx, MethodChatSend, params)
}
