package auth

import (
	"context"
	"time"
)

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// DefaultAvatar is the profile image assigned at signup.
func (g Gender) DefaultAvatar() string {
	if g == GenderFemale {
		return "female-avatar.png"
	}
	return "male-avatar.png"
}

type User struct {
	ID               string
	Name             string
	Email            string
	PasswordHash     *string
	GoogleID         *string
	EmailVerified    bool
	RefreshTokenHash *string
	Birth            *time.Time
	Gender           *Gender
	Image            *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OAuthOnly reports whether the account has no local password.
func (u *User) OAuthOnly() bool {
	return u.PasswordHash == nil || *u.PasswordHash == ""
}

type NewUser struct {
	Name          string
	Email         string
	PasswordHash  *string
	GoogleID      *string
	EmailVerified bool
	Birth         *time.Time
	Gender        *Gender
	Image         *string
}

// UserUpdate carries the fields to change; nil fields are left untouched.
type UserUpdate struct {
	PasswordHash      *string
	GoogleID          *string
	EmailVerified     *bool
	RefreshTokenHash  *string
	ClearRefreshToken bool
	Image             *string
}

type CodeKind string

const (
	CodeKindOTP   CodeKind = "OTP"
	CodeKindReset CodeKind = "RESET"
)

type VerificationCode struct {
	ID        string
	UserID    string
	Kind      CodeKind
	Value     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Store is the credential persistence used by the auth service. Lookups
// return (nil, nil) when nothing matches.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindUserByGoogleID(ctx context.Context, googleID string) (*User, error)
	CreateUser(ctx context.Context, u NewUser) (*User, error)
	UpdateUser(ctx context.Context, id string, upd UserUpdate) error
	CreateCode(ctx context.Context, code VerificationCode) error
	FindCodeByUser(ctx context.Context, userID string, kind CodeKind) (*VerificationCode, error)
	DeleteCodesByUserAndKind(ctx context.Context, userID string, kind CodeKind) error
}
