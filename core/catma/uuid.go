package catma

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// uuidPrefix is the prefix of CATMA identifiers on the wire.
const uuidPrefix = "CATMA_"

// FormatUUID formats the given UUID as a CATMA identifier, e.g.
// CATMA_8DF8AB1D-002F-4693-AB9B-96DAF9D1BA87.
func FormatUUID(id uuid.UUID) string {
	return uuidPrefix + strings.ToUpper(id.String())
}

// ParseUUID parses a CATMA identifier back into a UUID. Besides the
// CATMA_ prefix it accepts the CATMA 6 two-character prefixes where
// tagset IDs start with T, document IDs with D and collection IDs with C.
func ParseUUID(catmaID string) (uuid.UUID, error) {
	if strings.HasPrefix(catmaID, uuidPrefix) {
		return uuid.Parse(catmaID[len(uuidPrefix):])
	}
	if len(catmaID) > 2 {
		return uuid.Parse(catmaID[2:])
	}
	return uuid.Nil, fmt.Errorf("not a CATMA identifier: %q", catmaID)
}

// Timestamp returns the current time as a version string with milliseconds
// and timezone offset, e.g. 2006-01-02T15:04:05.000-0700.
func Timestamp() string {
	return FormatTimestamp(time.Now())
}

// FormatTimestamp formats the given time as a CATMA version string.
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000-0700")
}

// RandomColor generates a random display color as a packed integer with
// the alpha component in bits 24-31, red in 16-23, green in 8-15 and blue
// in 0-7.
func RandomColor() int {
	red := rand.Intn(256)
	green := rand.Intn(256)
	blue := rand.Intn(256)
	return (255&0xFF)<<24 | (red&0xFF)<<16 | (green&0xFF)<<8 | blue&0xFF
}
