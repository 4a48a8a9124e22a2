package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bankofchain/vaultd/internal/config"
)

const (
	HeaderAPIKey = "X-API-Key"

	ContextAccountKey = "auth_account"
	ContextRoleKey    = "auth_role"
)

// Role is the capability level bound to an API key. Governance implies
// keeper, keeper implies depositor.
type Role int

const (
	RoleDepositor Role = iota
	RoleKeeper
	RoleGovernance
)

func (r Role) covers(required Role) bool {
	return r >= required
}

// AuthMiddleware resolves the API key to an account and role. Requests with
// no known key are rejected before any handler runs.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	depositors := make(map[string]string, len(cfg.Auth.Depositors))
	for _, d := range cfg.Auth.Depositors {
		depositors[d.APIKey] = d.Account
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderAPIKey)
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderAPIKey + " header"})
			c.Abort()
			return
		}

		switch {
		case cfg.Auth.GovernanceKey != "" && key == cfg.Auth.GovernanceKey:
			c.Set(ContextRoleKey, RoleGovernance)
			c.Set(ContextAccountKey, "governance")
		case cfg.Auth.KeeperKey != "" && key == cfg.Auth.KeeperKey:
			c.Set(ContextRoleKey, RoleKeeper)
			c.Set(ContextAccountKey, "keeper")
		default:
			account, ok := depositors[key]
			if !ok {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown api key"})
				c.Abort()
				return
			}
			c.Set(ContextRoleKey, RoleDepositor)
			c.Set(ContextAccountKey, account)
		}
		c.Next()
	}
}

// RequireRole gates a route group on a minimum capability level.
func RequireRole(required Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, exists := c.Get(ContextRoleKey)
		if !exists || !roleVal.(Role).covers(required) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "insufficient role for this operation"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// Account returns the authenticated share-holder account for the request.
func Account(c *gin.Context) string {
	if v, ok := c.Get(ContextAccountKey); ok {
		return v.(string)
	}
	return ""
}
