package middleware

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type groupAccessLookup interface {
	FindAccess(ctx context.Context, id string) (*models.GroupAccess, error)
}

// RequireGroupOwner lets only the owner of the group named by the :id path
// parameter through. Super admins always pass. Unknown and unowned groups
// pass so the handler can create, claim or report them. It must run after JWT.
func RequireGroupOwner(groups groupAccessLookup) gin.HandlerFunc {
	return groupAccess(groups, "only the group owner can do this", func(access *models.GroupAccess, userID string) bool {
		return access.IsOwner(userID)
	})
}

// RequireGroupMember lets the owner and the members of the group through.
func RequireGroupMember(groups groupAccessLookup) gin.HandlerFunc {
	return groupAccess(groups, "not a member or owner of this group", func(access *models.GroupAccess, userID string) bool {
		return access.CanRead(userID)
	})
}

func groupAccess(groups groupAccessLookup, denied string, allowed func(*models.GroupAccess, string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := c.Get(ContextUserKey)
		user, _ := claims.(*models.JWTClaims)
		if !ok || user == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if user.Role == models.RoleSuperAdmin {
			c.Next()
			return
		}

		access, err := groups.FindAccess(c.Request.Context(), c.Param("id"))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			c.Next()
			return
		case err != nil:
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load group"))
			c.Abort()
			return
		}

		if access.Claimed() && !allowed(access, user.UserID) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, denied))
			c.Abort()
			return
		}
		c.Next()
	}
}
