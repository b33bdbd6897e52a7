package entity

import (
	"github.com/mbeoliero/tutorchat/sdk"
)

// User represents a marketplace account
type User struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Avatar    string `json:"avatar"`
	Password  string `json:"-"`
	CreatedAt int64  `json:"created_at"`
}

// ToUserInfo converts User to its public view
func (u *User) ToUserInfo() *sdk.UserInfo {
	return &sdk.UserInfo{
		Id:     u.Id,
		Name:   u.Name,
		Role:   u.Role,
		Avatar: u.Avatar,
	}
}

// ToParticipant converts User to a conversation participant
func (u *User) ToParticipant() sdk.Participant {
	return sdk.Participant{
		Id:     u.Id,
		Name:   u.Name,
		Avatar: u.Avatar,
	}
}
