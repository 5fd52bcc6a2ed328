package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// StaffID returns the authenticated staff id, if any.
func StaffID(c echo.Context) (int64, bool) {
	id, ok := c.Get(KeyStaffID).(int64)
	return id, ok
}

// Username returns the authenticated staff username, or "" for shoppers.
func Username(c echo.Context) string {
	u, _ := c.Get(KeyUsername).(string)
	return u
}

// principal names the caller for rate limiting: the staff id when logged
// in, "anon" otherwise.
func principal(c echo.Context) string {
	if id, ok := StaffID(c); ok {
		return strconv.FormatInt(id, 10)
	}
	return "anon"
}
