package authcore

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/taskgrid/authcore/authz"
	"github.com/taskgrid/authcore/jwt"
)

// ActorFromClaims maps decoded access-token claims onto an authorization
// actor. It trusts the claims as already verified; only structural problems
// such as a malformed subject are rejected.
func ActorFromClaims(claims *jwt.Claims) (authz.Actor, error) {
	if claims == nil {
		return authz.Actor{}, fmt.Errorf("%w: nil claims", ErrInvalidToken)
	}
	if claims.TokenType != jwt.TypeAccess {
		return authz.Actor{}, fmt.Errorf("%w: not an access token", ErrInvalidToken)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return authz.Actor{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	actor := authz.Actor{
		UserID:      userID,
		Roles:       authz.RolesFromStrings(claims.Roles),
		Permissions: authz.PermissionsFromStrings(claims.Permissions),
	}
	if claims.DepartmentID != nil {
		deptID, err := uuid.Parse(*claims.DepartmentID)
		if err != nil {
			return authz.Actor{}, fmt.Errorf("%w: bad department id", ErrInvalidToken)
		}
		actor.DepartmentID = &deptID
	}
	return actor, nil
}
