package http

import (
	"github.com/labstack/echo/v4"

	xutil "ChurnScope/pkg/util"
)

// QueryInt reads an integer query parameter, falling back to def when it is
// missing or malformed.
func QueryInt(c echo.Context, name string, def int) int {
	return xutil.ParseIntDefault(c.QueryParam(name), def)
}
