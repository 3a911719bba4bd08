package helpers

import (
	"encoding/json"
	"math/rand"
)

const (
	reqIDMin = 10000
	reqIDMax = 9999999
)

// RandomReqID returns a request id for stream subscribe/unsubscribe
// messages. Uniqueness within a connection's lifetime is all that matters.
func RandomReqID() int {
	return reqIDMin + rand.Intn(reqIDMax-reqIDMin)
}

// ToJSONString renders v as a compact JSON string for debug logging.
// Returns "" when v cannot be marshaled.
func ToJSONString(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
