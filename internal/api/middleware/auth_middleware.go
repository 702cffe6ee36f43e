package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postpulse/pkg/utils"
	"github.com/rs/zerolog"
)

type AuthMiddleware struct {
	secretKey  string
	cookieName string
	logger     zerolog.Logger
}

func NewAuthMiddleware(secretKey, cookieName string, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		secretKey:  secretKey,
		cookieName: cookieName,
		logger:     logger.With().Str("component", "auth").Logger(),
	}
}

// AuthMiddleware accepts a session JWT from the cookie or a bearer header and
// stores the user id in c.Locals("user_id").
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(m.cookieName)
		if tokenString == "" {
			if h := c.Get(fiber.HeaderAuthorization); len(h) > 7 && h[:7] == "Bearer " {
				tokenString = h[7:]
			}
		}

		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		claims, err := utils.ValidateToken(m.secretKey, tokenString)
		if err != nil {
			c.Cookie(&fiber.Cookie{
				Name:   m.cookieName,
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})

			m.logger.Debug().Err(err).Msg("token validation failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user_id", claims.UserID)
		return c.Next()
	}
}
