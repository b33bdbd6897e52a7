package sdk

import "context"

// CreateConversation opens the conversation of a contact request.
// The server returns the existing conversation when the request already has one.
func (c *Client) CreateConversation(ctx context.Context, requestId string) (*Conversation, error) {
	var result Conversation
	if err := c.post(ctx, "/conversations", "", &CreateConversationRequest{RequestId: requestId}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListConversations gets all conversations for the current user
func (c *Client) ListConversations(ctx context.Context) ([]*Conversation, error) {
	var result []*Conversation
	if err := c.get(ctx, "/conversations", "", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkRead zeroes the caller's unread counter and marks the peer's messages read
func (c *Client) MarkRead(ctx context.Context, conversationId string) error {
	return c.put(ctx, "/conversations/{id}/read", conversationId, nil, nil)
}

// CloseConversation moves a conversation to its terminal closed state
func (c *Client) CloseConversation(ctx context.Context, conversationId string) (*Conversation, error) {
	var result Conversation
	if err := c.put(ctx, "/conversations/{id}/close", conversationId, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
