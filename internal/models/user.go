package models

import "time"

type UserRole string

const (
	UserRoleUser      UserRole = "user"
	UserRoleModerator UserRole = "moderator"
	UserRoleAdmin     UserRole = "admin"
)

var roleRank = map[UserRole]int{
	UserRoleUser:      1,
	UserRoleModerator: 2,
	UserRoleAdmin:     3,
}

// Valid reports whether r is one of the declared roles.
func (r UserRole) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Satisfies reports whether a holder of r may act where required is demanded.
// Roles are ranked user < moderator < admin.
func (r UserRole) Satisfies(required UserRole) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	return have >= roleRank[required]
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusSuspended, UserStatusBanned:
		return true
	}
	return false
}

type User struct {
	ID               string
	Email            string
	Username         string
	PasswordHash     []byte
	FirstName        string
	LastName         string
	AvatarURL        *string
	Timezone         string
	GoogleID         *string
	Role             UserRole
	Status           UserStatus
	PredictionsUsed  int
	ChatMessagesUsed int
	UsageResetAt     time.Time
	LastLoginAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// UsagePeriodStart returns the first instant of the calendar month containing t, in UTC.
func UsagePeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
