package dto

import (
	domainuser "sprinter/internal/domain/user"
)

const TokenTypeBearer = "bearer"

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type UserProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func NewBearerToken(token string) Token {
	return Token{AccessToken: token, TokenType: TokenTypeBearer}
}

func MapUserProfile(user *domainuser.User) UserProfile {
	if user == nil {
		return UserProfile{}
	}
	return UserProfile{
		ID:    string(user.ID),
		Name:  user.Name,
		Email: user.Email,
	}
}
