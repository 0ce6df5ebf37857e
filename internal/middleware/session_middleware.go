package middleware

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/ssu526/path-builder-backend/internal/httperror"
	"github.com/ssu526/path-builder-backend/internal/session"
)

// RequireAuth is a Fiber middleware that resolves the session cookie against
// the session store. On success the session TTL is refreshed (sliding
// expiration) and the user id is stored in the request Locals.
func RequireAuth(sessions *session.Store, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(cookieName)
		if token == "" {
			return httperror.Unauthorized("Unauthenticated.")
		}

		sess, err := sessions.Get(c.Context(), token)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return httperror.Unauthorized("Unauthenticated.")
			}
			return err
		}

		if err := sessions.Touch(c.Context(), token); err != nil {
			// The request already proved a live session; a failed TTL refresh
			// must not reject it.
			log.Printf("Failed to touch session: %v", err)
		}

		// Store identity in Fiber context for subsequent handlers
		c.Locals("user_id", sess.UserID)

		return c.Next()
	}
}
