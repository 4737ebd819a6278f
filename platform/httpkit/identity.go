// Package httpkit provides HTTP utilities including identity abstraction.
package httpkit

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity represents the authenticated operator behind an admin request.
type Identity interface {
	OperatorID() uuid.UUID
	Roles() []string
	HasRole(role string) bool
	IsAuthenticated() bool
}

type identity struct {
	operatorID    uuid.UUID
	roles         []string
	authenticated bool
}

func (i *identity) OperatorID() uuid.UUID    { return i.operatorID }
func (i *identity) Roles() []string          { return i.roles }
func (i *identity) HasRole(role string) bool { return slices.Contains(i.roles, role) }
func (i *identity) IsAuthenticated() bool    { return i.authenticated }

// GetIdentity extracts the Identity from a Gin context.
// Returns an unauthenticated identity if operator info is not present.
func GetIdentity(c *gin.Context) Identity {
	raw, ok := c.Get(ContextOperatorIDKey)
	if !ok {
		return &identity{}
	}
	operatorID, ok := raw.(uuid.UUID)
	if !ok {
		return &identity{}
	}

	var roles []string
	if value, ok := c.Get(ContextRolesKey); ok {
		roles, _ = value.([]string)
	}

	return &identity{operatorID: operatorID, roles: roles, authenticated: true}
}

// MustGetIdentity extracts the Identity from a Gin context.
// If the operator is not authenticated, it aborts with 401 Unauthorized and returns nil.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil
	}
	return id
}
