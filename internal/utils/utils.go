package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

func GetPaginationParams(c *gin.Context) (int, int) {
	page := QueryInt(c, "page", 1, 1, 1<<20)
	pageSize := QueryInt(c, "per_page", 10, 1, 100)
	return page, pageSize
}

// QueryInt reads an integer query parameter, falling back to def when it is
// missing, malformed or outside [min, max].
func QueryInt(c *gin.Context, key string, def, min, max int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < min || v > max {
		return def
	}
	return v
}
