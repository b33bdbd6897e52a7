package sdk

import (
	"context"
	"net/url"
	"strconv"

	"github.com/mbeoliero/tutorchat/pkg/constant"
)

// SendMessage persists a message; the authoritative copy also arrives over the socket
func (c *Client) SendMessage(ctx context.Context, conversationId string, req *SendMessageRequest) (*Message, error) {
	var result Message
	if err := c.post(ctx, "/conversations/{id}/messages", conversationId, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendTextMessage is a convenience method to send a text message
func (c *Client) SendTextMessage(ctx context.Context, conversationId, clientMsgId, text string) (*Message, error) {
	return c.SendMessage(ctx, conversationId, &SendMessageRequest{
		ClientMsgId: clientMsgId,
		MsgType:     constant.MsgTypeText,
		Content:     text,
	})
}

// GetMessages fetches one page of history. Page 1 is the newest window.
func (c *Client) GetMessages(ctx context.Context, conversationId string, page, limit int) (*MessagePage, error) {
	query := url.Values{}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var result MessagePage
	if err := c.get(ctx, "/conversations/{id}/messages", conversationId, query, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
