package models

import "strconv"

// IDs are opaque, server-assigned strings. On this service they happen to be
// snowflakes rendered in decimal, so a creation timestamp can be recovered
// locally when a payload omits createdAt.

const (
	timestampLength = 42
	timestampPos    = 64 - timestampLength
)

// IDTimestamp extracts the unix millisecond timestamp embedded in a
// snowflake ID. Returns 0 for IDs that do not parse as snowflakes.
func IDTimestamp(id string) int64 {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0
	}
	return int64(n >> timestampPos)
}
