package weather

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lox/regionweather/internal/models"
)

// Fingerprint derives the deterministic cache key for a query. Coordinates
// are rounded to 4 decimals (~11m) and fields are sorted so equivalent
// queries always collide.
func Fingerprint(p models.QueryParams) string {
	fields := make([]string, len(p.Fields))
	copy(fields, p.Fields)
	sort.Strings(fields)

	return fmt.Sprintf("%.4f|%.4f|%s|%s|%s",
		p.Latitude, p.Longitude, p.StartDate, p.EndDate, strings.Join(fields, ","))
}
