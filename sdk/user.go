package sdk

import "context"

// GetMe returns the authenticated user
func (c *Client) GetMe(ctx context.Context) (*UserInfo, error) {
	var result UserInfo
	if err := c.get(ctx, "/users/me", "", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOnlineStatus reports whether a user is connected to the socket server
func (c *Client) GetOnlineStatus(ctx context.Context, userId string) (*OnlineStatus, error) {
	var result OnlineStatus
	if err := c.get(ctx, "/users/{id}/online", userId, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
