// Package graph serves the identity operations over GraphQL. Resolvers share the
// REST transport: tokens travel in the same cookies unless the client asks for
// bearer transport.
package graph

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/graphql-go/graphql"
	"github.com/rs/zerolog"

	"boomscore/identity/internal/authcookie"
	"boomscore/identity/internal/middleware"
	"boomscore/identity/internal/service"
)

type ginContextKey struct{}

type Server struct {
	auth      *service.AuthService
	accounts  *service.AccountService
	transport authcookie.Transport
	log       zerolog.Logger
	schema    graphql.Schema
}

func NewServer(auth *service.AuthService, accounts *service.AccountService, transport authcookie.Transport, log zerolog.Logger) (*Server, error) {
	s := &Server{auth: auth, accounts: accounts, transport: transport, log: log}
	schema, err := s.buildSchema()
	if err != nil {
		return nil, err
	}
	s.schema = schema
	return s, nil
}

type request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Handle executes one GraphQL request. It expects the authentication middleware
// to have run so the principal, if any, is already on the request context.
func (s *Server) Handle(c *gin.Context) {
	var req request
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		middleware.Abort(c, http.StatusBadRequest, "validation_error", "query is required")
		return
	}

	ctx := context.WithValue(c.Request.Context(), ginContextKey{}, c)
	result := graphql.Do(graphql.Params{
		Schema:         s.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        ctx,
	})
	c.JSON(http.StatusOK, result)
}

func ginContext(ctx context.Context) *gin.Context {
	c, _ := ctx.Value(ginContextKey{}).(*gin.Context)
	return c
}
