package identity

import (
	"context"

	"github.com/bookswap/go-identity/middleware/jwtware"
	"github.com/gofiber/fiber/v2"
)

// ValidationListener aliases the jwtware listener so consumers can use
// identity helpers directly.
type ValidationListener = jwtware.ValidationListener

// ClaimsContextKey is where route middleware stores validated claims.
const ClaimsContextKey = "user"

// validatorBridge adapts a TokenValidator to the jwtware interface without an
// import cycle.
type validatorBridge struct {
	validator TokenValidator
}

func (b validatorBridge) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := b.validator.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ContextEnricherAdapter adapts jwtware.AuthClaims back to identity.AuthClaims
// and stores them in the standard context for downstream service calls.
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}
	return WithClaimsContext(c, authClaims)
}

// Protected returns a fiber middleware that authenticates bearer tokens with
// the given validator. An optional role restricts the route to principals
// holding it.
func Protected(validator TokenValidator, role ...Role) fiber.Handler {
	cfg := jwtware.Config{
		TokenValidator:  validatorBridge{validator: validator},
		ContextKey:      ClaimsContextKey,
		ContextEnricher: ContextEnricherAdapter,
	}
	if len(role) > 0 {
		cfg.RequiredRole = string(role[0])
	}
	return jwtware.New(cfg)
}

// GetFiberClaims extracts validated claims from a fiber request guarded by
// Protected.
func GetFiberClaims(c *fiber.Ctx) (AuthClaims, bool) {
	raw := c.Locals(ClaimsContextKey)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AuthClaims)
	return claims, ok
}
