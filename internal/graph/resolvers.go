package graph

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"

	"boomscore/identity/internal/authcookie"
	"boomscore/identity/internal/middleware"
	"boomscore/identity/internal/service"
)

func stringArg(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

func optionalArg(m map[string]interface{}, key string) *string {
	v, ok := m[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func (s *Server) principal(p graphql.ResolveParams) (service.Principal, error) {
	principal, ok := service.PrincipalFromContext(p.Context)
	if !ok {
		return service.Principal{}, errUnauthenticated
	}
	return principal, nil
}

func (s *Server) resolveMe(p graphql.ResolveParams) (interface{}, error) {
	principal, err := s.principal(p)
	if err != nil {
		return nil, err
	}
	return userObject(principal.User), nil
}

func (s *Server) resolveMySessions(p graphql.ResolveParams) (interface{}, error) {
	principal, err := s.principal(p)
	if err != nil {
		return nil, err
	}
	sessions, err := s.accounts.ListSessions(p.Context, principal.User.ID)
	if err != nil {
		return nil, s.toGraphError(err)
	}

	var current string
	if principal.Claims != nil {
		current = principal.Claims.SessionToken()
	}
	out := make([]interface{}, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionObject(sess, current))
	}
	return out, nil
}

func (s *Server) resolveRegister(p graphql.ResolveParams) (interface{}, error) {
	c := ginContext(p.Context)
	input, _ := p.Args["input"].(map[string]interface{})

	result, err := s.auth.Register(p.Context, service.RegisterInput{
		Email:     stringArg(input, "email"),
		Username:  stringArg(input, "username"),
		Password:  stringArg(input, "password"),
		FirstName: stringArg(input, "firstName"),
		LastName:  stringArg(input, "lastName"),
		Timezone:  stringArg(input, "timezone"),
	}, middleware.ClientInfo(c))
	if err != nil {
		return nil, s.toGraphError(err)
	}
	return s.deliver(c, result), nil
}

func (s *Server) resolveLogin(p graphql.ResolveParams) (interface{}, error) {
	c := ginContext(p.Context)
	input, _ := p.Args["input"].(map[string]interface{})

	result, err := s.auth.Login(p.Context, service.LoginInput{
		Email:    stringArg(input, "email"),
		Password: stringArg(input, "password"),
	}, middleware.ClientInfo(c))
	if err != nil {
		return nil, s.toGraphError(err)
	}
	return s.deliver(c, result), nil
}

// resolveRefresh takes the refresh token from its argument or, failing that, the
// refresh cookie. Browsers only send that cookie to /auth paths, so cookie
// clients normally refresh over REST.
func (s *Server) resolveRefresh(p graphql.ResolveParams) (interface{}, error) {
	c := ginContext(p.Context)
	token := stringArg(p.Args, "refreshToken")
	if token == "" {
		token, _ = s.transport.Refresh.Read(c.Request)
	}
	if token == "" {
		return nil, errUnauthenticated
	}

	result, err := s.auth.Refresh(p.Context, token, middleware.ClientInfo(c))
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			s.transport.Clear(c.Writer)
		}
		return nil, s.toGraphError(err)
	}
	return s.deliver(c, result), nil
}

func (s *Server) resolveLogout(p graphql.ResolveParams) (interface{}, error) {
	c := ginContext(p.Context)
	access, _ := s.transport.AccessToken(c.Request)
	refresh, _ := s.transport.Refresh.Read(c.Request)

	s.transport.Clear(c.Writer)
	if err := s.auth.Logout(p.Context, access, refresh); err != nil {
		return nil, s.toGraphError(err)
	}
	return true, nil
}

func (s *Server) resolveUpdateProfile(p graphql.ResolveParams) (interface{}, error) {
	principal, err := s.principal(p)
	if err != nil {
		return nil, err
	}
	input, _ := p.Args["input"].(map[string]interface{})

	user, err := s.auth.UpdateProfile(p.Context, principal.User.ID, service.ProfileInput{
		FirstName: optionalArg(input, "firstName"),
		LastName:  optionalArg(input, "lastName"),
		Timezone:  optionalArg(input, "timezone"),
		Username:  optionalArg(input, "username"),
	})
	if err != nil {
		return nil, s.toGraphError(err)
	}
	return userObject(user), nil
}

func (s *Server) resolveRevokeSession(p graphql.ResolveParams) (interface{}, error) {
	principal, err := s.principal(p)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.RevokeSession(p.Context, principal.User.ID, stringArg(p.Args, "id")); err != nil {
		return nil, s.toGraphError(err)
	}
	return true, nil
}

func (s *Server) deliver(c *gin.Context, result service.AuthResult) map[string]interface{} {
	payload := map[string]interface{}{
		"user":             userObject(result.User),
		"accessExpiresAt":  formatTime(result.AccessExpiresAt),
		"refreshExpiresAt": formatTime(result.RefreshExpiresAt),
	}
	if authcookie.WantsBearer(c.Request) {
		payload["accessToken"] = result.AccessToken
		payload["refreshToken"] = result.RefreshToken
		return payload
	}
	s.transport.Write(c.Writer, result.AccessToken, result.RefreshToken)
	return payload
}
