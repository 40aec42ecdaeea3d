package utils

import (
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/go-gotop/bnconnector/exchange"
)

// Redefining the standard package
var Json = jsoniter.ConfigCompatibleWithStandardLibrary

// Params request parameters, for both REST queries and websocket envelopes
type Params map[string]interface{}

// RequiredError is returned when a mandatory endpoint parameter is missing.
type RequiredError struct {
	Field string
	Msg   string
}

func (e *RequiredError) Error() string {
	return e.Msg
}

// AssertParamExists fails with a *RequiredError when value is nil.
func AssertParamExists(functionName, paramName string, value interface{}) error {
	if isNil(value) {
		return &RequiredError{
			Field: paramName,
			Msg:   fmt.Sprintf("Required parameter %s was null or undefined when calling %s.", paramName, functionName),
		}
	}
	return nil
}

// RandomString returns 32 lowercase hex characters.
func RandomString() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// Timestamp current unix time in milliseconds
func Timestamp() int64 {
	return FormatTimestamp(time.Now())
}

// FormatTimestamp formats a time into Unix timestamp in milliseconds, as requested by Binance.
func FormatTimestamp(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// ValidateTimeUnit returns the unit unchanged if it is accepted, "" for an empty input.
func ValidateTimeUnit(timeUnit string) (string, error) {
	if timeUnit == "" {
		return "", nil
	}
	if !exchange.TimeUnit(timeUnit).Valid() {
		return "", fmt.Errorf("timeUnit must be either 'MILLISECOND' or 'MICROSECOND'")
	}
	return timeUnit, nil
}

// RemoveEmptyValue returns a copy of p without nil and empty string values.
func RemoveEmptyValue(p Params) Params {
	out := make(Params, len(p))
	for k, v := range p {
		if isNil(v) {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// SortedKeys keys of p in alphabetical order
func SortedKeys(p Params) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
