package utils

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomString(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{32}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		s := RandomString()
		assert.Regexp(t, re, s)
		_, dup := seen[s]
		assert.False(t, dup)
		seen[s] = struct{}{}
	}
}

func TestValidateTimeUnit(t *testing.T) {
	for _, u := range []string{"MILLISECOND", "MICROSECOND", "millisecond", "microsecond"} {
		got, err := ValidateTimeUnit(u)
		require.NoError(t, err)
		assert.Equal(t, u, got)
	}

	got, err := ValidateTimeUnit("")
	assert.NoError(t, err)
	assert.Empty(t, got)

	_, err = ValidateTimeUnit("SECOND")
	assert.EqualError(t, err, "timeUnit must be either 'MILLISECOND' or 'MICROSECOND'")
}

func TestAssertParamExists(t *testing.T) {
	assert.NoError(t, AssertParamExists("newOrder", "symbol", "BTCUSDT"))
	assert.NoError(t, AssertParamExists("newOrder", "quantity", 0))

	err := AssertParamExists("newOrder", "symbol", nil)
	var reqErr *RequiredError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, "symbol", reqErr.Field)
	assert.Equal(t, "Required parameter symbol was null or undefined when calling newOrder.", err.Error())
}

func TestRemoveEmptyValue(t *testing.T) {
	out := RemoveEmptyValue(Params{"a": "", "b": nil, "c": 0, "d": false, "e": "x"})
	assert.Equal(t, Params{"c": 0, "d": false, "e": "x"}, out)
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"apiKey", "quantity", "symbol", "timestamp"},
		SortedKeys(Params{"symbol": 1, "timestamp": 2, "apiKey": 3, "quantity": 4}))
}

func TestReplaceWebsocketStreamsPlaceholders(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		vars map[string]interface{}
		want string
	}{
		{"symbol lowercased", "<symbol>@aggTrade", map[string]interface{}{"symbol": "BTCUSDT"}, "btcusdt@aggTrade"},
		{"update speed", "<symbol>@depth<levels>@<updateSpeed>",
			map[string]interface{}{"symbol": "BNBUSDT", "levels": 10, "updateSpeed": "100ms"}, "bnbusdt@depth10@100ms"},
		{"missing update speed", "<symbol>@depth<levels>@<updateSpeed>",
			map[string]interface{}{"symbol": "BNBUSDT", "levels": 5}, "bnbusdt@depth5"},
		{"key normalization", "<symbol>@ticker_<window_size>",
			map[string]interface{}{"Symbol": "ETHBTC", "window-size": "1H"}, "ethbtc@ticker_1h"},
		{"preceding at kept", "<listenKey>@<suffix>",
			map[string]interface{}{"listenKey": "abc", "suffix": "x"}, "abc@x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplaceWebsocketStreamsPlaceholders(tt.tmpl, tt.vars))
		})
	}
}
