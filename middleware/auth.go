// middleware/auth.go
package middleware

import (
	"strings"

	"github.com/careslot/backend/utils"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TokenAuth authenticates one principal kind. Each kind reads its own
// header (token / dtoken / atoken), and the verifier checks the kind
// discriminator embedded in the token, so a doctor token replayed on a
// user route fails even though the signing key is shared.
type TokenAuth struct {
	logger *zap.Logger
	issuer *utils.TokenIssuer
	kind   utils.PrincipalKind
	header string // e.g. "token", "dtoken", "atoken"

	// adminIdentity is the configured admin identity string; set only
	// for the admin kind, where the token subject must match it
	// exactly.
	adminIdentity string
}

func NewTokenAuth(logger *zap.Logger, issuer *utils.TokenIssuer, kind utils.PrincipalKind, header string) *TokenAuth {
	return &TokenAuth{
		logger: logger,
		issuer: issuer,
		kind:   kind,
		header: header,
	}
}

// NewAdminTokenAuth builds the admin middleware. Admin is a static
// credential pair, so verification is an exact identity match rather
// than a record lookup.
func NewAdminTokenAuth(logger *zap.Logger, issuer *utils.TokenIssuer, header, adminIdentity string) *TokenAuth {
	return &TokenAuth{
		logger:        logger,
		issuer:        issuer,
		kind:          utils.KindAdmin,
		header:        header,
		adminIdentity: adminIdentity,
	}
}

func (m *TokenAuth) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get(m.header)

		// Fall back to Authorization: Bearer
		if token == "" {
			auth := c.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if token == "" {
			m.logger.Debug("no authentication token",
				zap.String("path", c.Path()),
				zap.String("kind", string(m.kind)))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Authentication required",
			})
		}

		principalID, err := m.issuer.Verify(token, m.kind)
		if err != nil {
			m.logger.Debug("invalid token",
				zap.String("path", c.Path()),
				zap.String("kind", string(m.kind)),
				zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Invalid token",
			})
		}

		if m.kind == utils.KindAdmin && principalID != m.adminIdentity {
			m.logger.Warn("admin token with unexpected identity",
				zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Invalid token",
			})
		}

		c.Locals("principalID", principalID)
		c.Locals("principalKind", string(m.kind))

		return c.Next()
	}
}
