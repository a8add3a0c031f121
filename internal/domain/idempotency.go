package domain

import (
	"encoding/json"
	"time"
)

// IdempotencyRecord stores the exact response produced for a settlement
// request so replays with the same key return it verbatim. Write-once per
// key.
type IdempotencyRecord struct {
	Key        string
	Body       json.RawMessage
	StatusCode int
	CreatedAt  time.Time
}
