package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

// Params holds validated pagination parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse extracts and validates page/limit from query parameters
func Parse(c *gin.Context) Params {
	return ParseWithLimit(c, DefaultLimit)
}

// ParseWithLimit is Parse with a per-endpoint default page size. The default
// is clamped to MaxLimit like any requested limit.
func ParseWithLimit(c *gin.Context, defaultLimit int) Params {
	if defaultLimit < MinLimit || defaultLimit > MaxLimit {
		defaultLimit = DefaultLimit
	}

	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < MinLimit {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}
