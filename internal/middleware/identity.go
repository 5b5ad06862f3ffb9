package middleware

import "github.com/labstack/echo/v4"

// callerID returns the JWT subject stored by JWTAuth, or "anon" for the
// unauthenticated buyer routes.
func callerID(c echo.Context) string {
	for _, k := range []string{"user_id", "userID"} {
		if s, ok := c.Get(k).(string); ok && s != "" {
			return s
		}
	}
	return "anon"
}
