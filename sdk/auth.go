package sdk

import "context"

// Login authenticates a user and returns a token
// The token is automatically stored in the client for subsequent requests
func (c *Client) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	var result LoginResponse
	if err := c.post(ctx, "/auth/login", "", req, &result); err != nil {
		return nil, err
	}
	c.SetToken(result.Token)
	return &result, nil
}

// LoginWithUserId is a convenience method to login with user Id and password
func (c *Client) LoginWithUserId(ctx context.Context, userId, password string) (*LoginResponse, error) {
	return c.Login(ctx, &LoginRequest{
		UserId:   userId,
		Password: password,
	})
}
