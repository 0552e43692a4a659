package authcore

import (
	"github.com/taskgrid/authcore/jwt"
	"github.com/taskgrid/authcore/totp"
)

// TokenManager exposes the engine's token codec to the external test package.
func TokenManager(e *Engine) *jwt.Manager { return e.tokens }

// TOTPGenerator exposes the engine's TOTP generator to the external test package.
func TOTPGenerator(e *Engine) *totp.Generator { return e.totp }
