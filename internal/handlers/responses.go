package handlers

import (
	"time"

	"boomscore/identity/internal/models"
)

type userResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Username         string     `json:"username"`
	FirstName        string     `json:"firstName"`
	LastName         string     `json:"lastName"`
	DisplayName      string     `json:"displayName"`
	AvatarURL        *string    `json:"avatarUrl"`
	Timezone         string     `json:"timezone"`
	Role             string     `json:"role"`
	Status           string     `json:"status"`
	PredictionsUsed  int        `json:"predictionsUsed"`
	ChatMessagesUsed int        `json:"chatMessagesUsed"`
	UsageResetAt     time.Time  `json:"usageResetAt"`
	LastLoginAt      *time.Time `json:"lastLoginAt"`
	CreatedAt        time.Time  `json:"createdAt"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{
		ID:               u.ID,
		Email:            u.Email,
		Username:         u.Username,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		DisplayName:      u.DisplayName(),
		AvatarURL:        u.AvatarURL,
		Timezone:         u.Timezone,
		Role:             string(u.Role),
		Status:           string(u.Status),
		PredictionsUsed:  u.PredictionsUsed,
		ChatMessagesUsed: u.ChatMessagesUsed,
		UsageResetAt:     u.UsageResetAt,
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
}

type sessionResponse struct {
	ID             string    `json:"id"`
	DeviceID       *string   `json:"deviceId"`
	IPAddress      string    `json:"ipAddress"`
	UserAgent      string    `json:"userAgent"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	CreatedAt      time.Time `json:"createdAt"`
	Current        bool      `json:"current"`
}

func toSessionResponse(s models.Session, currentToken string) sessionResponse {
	return sessionResponse{
		ID:             s.ID,
		DeviceID:       s.DeviceID,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		LastActivityAt: s.LastActivityAt,
		ExpiresAt:      s.ExpiresAt,
		CreatedAt:      s.CreatedAt,
		Current:        currentToken != "" && s.Token == currentToken,
	}
}

type deviceResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	LastIP       string     `json:"lastIp"`
	LastLocation string     `json:"lastLocation"`
	LastSeenAt   time.Time  `json:"lastSeenAt"`
	TrustedAt    *time.Time `json:"trustedAt"`
	BlockedAt    *time.Time `json:"blockedAt"`
	BlockReason  *string    `json:"blockReason"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func toDeviceResponse(d models.Device) deviceResponse {
	return deviceResponse{
		ID:           d.ID,
		Name:         d.Name,
		Status:       string(d.Status),
		LastIP:       d.LastIP,
		LastLocation: d.LastLocation,
		LastSeenAt:   d.LastSeenAt,
		TrustedAt:    d.TrustedAt,
		BlockedAt:    d.BlockedAt,
		BlockReason:  d.BlockReason,
		CreatedAt:    d.CreatedAt,
	}
}
