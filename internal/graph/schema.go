package graph

import (
	"time"

	"github.com/graphql-go/graphql"

	"boomscore/identity/internal/models"
)

var userType = graphql.NewObject(graphql.ObjectConfig{
	Name: "User",
	Fields: graphql.Fields{
		"id":               &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"email":            &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"username":         &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"firstName":        &graphql.Field{Type: graphql.String},
		"lastName":         &graphql.Field{Type: graphql.String},
		"displayName":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"avatarUrl":        &graphql.Field{Type: graphql.String},
		"timezone":         &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"role":             &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"status":           &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"predictionsUsed":  &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"chatMessagesUsed": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"lastLoginAt":      &graphql.Field{Type: graphql.String},
		"createdAt":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var sessionType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Session",
	Fields: graphql.Fields{
		"id":             &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"deviceId":       &graphql.Field{Type: graphql.ID},
		"ipAddress":      &graphql.Field{Type: graphql.String},
		"userAgent":      &graphql.Field{Type: graphql.String},
		"lastActivityAt": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"expiresAt":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"current":        &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
	},
})

var authPayloadType = graphql.NewObject(graphql.ObjectConfig{
	Name: "AuthPayload",
	Fields: graphql.Fields{
		"user":             &graphql.Field{Type: graphql.NewNonNull(userType)},
		"accessExpiresAt":  &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"refreshExpiresAt": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"accessToken":      &graphql.Field{Type: graphql.String},
		"refreshToken":     &graphql.Field{Type: graphql.String},
	},
})

var registerInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "RegisterInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"email":     &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"username":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"password":  &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"firstName": &graphql.InputObjectFieldConfig{Type: graphql.String},
		"lastName":  &graphql.InputObjectFieldConfig{Type: graphql.String},
		"timezone":  &graphql.InputObjectFieldConfig{Type: graphql.String},
	},
})

var loginInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "LoginInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"email":    &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
		"password": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.String)},
	},
})

var profileInputType = graphql.NewInputObject(graphql.InputObjectConfig{
	Name: "UpdateProfileInput",
	Fields: graphql.InputObjectConfigFieldMap{
		"firstName": &graphql.InputObjectFieldConfig{Type: graphql.String},
		"lastName":  &graphql.InputObjectFieldConfig{Type: graphql.String},
		"timezone":  &graphql.InputObjectFieldConfig{Type: graphql.String},
		"username":  &graphql.InputObjectFieldConfig{Type: graphql.String},
	},
})

func (s *Server) buildSchema() (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"me":         &graphql.Field{Type: userType, Resolve: s.resolveMe},
			"mySessions": &graphql.Field{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(sessionType))), Resolve: s.resolveMySessions},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"register": &graphql.Field{
				Type:    graphql.NewNonNull(authPayloadType),
				Args:    graphql.FieldConfigArgument{"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(registerInputType)}},
				Resolve: s.resolveRegister,
			},
			"login": &graphql.Field{
				Type:    graphql.NewNonNull(authPayloadType),
				Args:    graphql.FieldConfigArgument{"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(loginInputType)}},
				Resolve: s.resolveLogin,
			},
			"refreshSession": &graphql.Field{
				Type:    graphql.NewNonNull(authPayloadType),
				Args:    graphql.FieldConfigArgument{"refreshToken": &graphql.ArgumentConfig{Type: graphql.String}},
				Resolve: s.resolveRefresh,
			},
			"logout": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Resolve: s.resolveLogout,
			},
			"updateProfile": &graphql.Field{
				Type:    graphql.NewNonNull(userType),
				Args:    graphql.FieldConfigArgument{"input": &graphql.ArgumentConfig{Type: graphql.NewNonNull(profileInputType)}},
				Resolve: s.resolveUpdateProfile,
			},
			"revokeSession": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.Boolean),
				Args:    graphql.FieldConfigArgument{"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)}},
				Resolve: s.resolveRevokeSession,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{Query: query, Mutation: mutation})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func optionalTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func optionalString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func userObject(u models.User) map[string]interface{} {
	return map[string]interface{}{
		"id":               u.ID,
		"email":            u.Email,
		"username":         u.Username,
		"firstName":        u.FirstName,
		"lastName":         u.LastName,
		"displayName":      u.DisplayName(),
		"avatarUrl":        optionalString(u.AvatarURL),
		"timezone":         u.Timezone,
		"role":             string(u.Role),
		"status":           string(u.Status),
		"predictionsUsed":  u.PredictionsUsed,
		"chatMessagesUsed": u.ChatMessagesUsed,
		"lastLoginAt":      optionalTime(u.LastLoginAt),
		"createdAt":        formatTime(u.CreatedAt),
	}
}

func sessionObject(s models.Session, currentToken string) map[string]interface{} {
	return map[string]interface{}{
		"id":             s.ID,
		"deviceId":       optionalString(s.DeviceID),
		"ipAddress":      s.IPAddress,
		"userAgent":      s.UserAgent,
		"lastActivityAt": formatTime(s.LastActivityAt),
		"expiresAt":      formatTime(s.ExpiresAt),
		"current":        currentToken != "" && s.Token == currentToken,
	}
}
