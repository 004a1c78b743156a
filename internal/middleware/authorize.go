package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"boomscore/identity/internal/models"
)

type policyKind int

const (
	policyPublic policyKind = iota
	policyAuthenticated
	policyRole
)

// Policy is the access rule a route declares when it is registered.
type Policy struct {
	kind policyKind
	role models.UserRole
}

var (
	Public       = Policy{kind: policyPublic}
	RequiresAuth = Policy{kind: policyAuthenticated}
)

func RequiresRole(role models.UserRole) Policy {
	return Policy{kind: policyRole, role: role}
}

func (p Policy) String() string {
	switch p.kind {
	case policyAuthenticated:
		return "authenticated"
	case policyRole:
		return fmt.Sprintf("role:%s", p.role)
	default:
		return "public"
	}
}

// Allows reports whether user (nil for anonymous callers) passes the policy, and
// the status to answer with when not.
func (p Policy) Allows(user *models.User) (bool, int) {
	if p.kind == policyPublic {
		return true, http.StatusOK
	}
	if user == nil {
		return false, http.StatusUnauthorized
	}
	if p.kind == policyRole && !user.Role.Satisfies(p.role) {
		return false, http.StatusForbidden
	}
	return true, http.StatusOK
}

// Guard enforces p before the route handler runs.
func Guard(p Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user *models.User
		if u, ok := CurrentUser(c); ok {
			user = &u
		}

		ok, status := p.Allows(user)
		if ok {
			c.Next()
			return
		}
		if status == http.StatusUnauthorized {
			Abort(c, status, "unauthorized", "authentication required")
			return
		}
		Abort(c, status, "forbidden", "insufficient role")
	}
}
