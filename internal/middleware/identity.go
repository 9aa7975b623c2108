package middleware

// identity.go defines helper functions shared across middleware files and
// handlers.  UserID pulls the principal stored by JWTAuth from the Echo
// context.

import "github.com/labstack/echo/v4"

const userIDKey = "user_id"

// UserID returns the authenticated principal, or "" when the request did
// not pass through JWTAuth.
func UserID(c echo.Context) string {
	if s, ok := c.Get(userIDKey).(string); ok {
		return s
	}
	return ""
}

// keyUserID is UserID with a placeholder for anonymous callers, for use in
// rate-limit and cache keys.
func keyUserID(c echo.Context) string {
	if s := UserID(c); s != "" {
		return s
	}
	return "anon"
}
