package utils

import (
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`(@)?<([^>]+)>`)

func normalizeField(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, "_", "")
}

// ReplaceWebsocketStreamsPlaceholders fills <field> placeholders of a stream template,
// e.g. "<symbol>@depth<levels>@<updateSpeed>".
// Field names are matched ignoring case, '-' and '_'. Missing fields render as "".
func ReplaceWebsocketStreamsPlaceholders(tmpl string, variables map[string]interface{}) string {
	normalized := make(map[string]interface{}, len(variables))
	for k, v := range variables {
		normalized[normalizeField(k)] = v
	}

	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		sub := placeholderRe.FindStringSubmatch(match)
		precedingAt, field := sub[1], normalizeField(sub[2])

		value, ok := normalized[field]
		if !ok || isNil(value) {
			return ""
		}
		s := FormatValue(value)
		switch field {
		case "symbol", "windowsize":
			return strings.ToLower(s)
		case "updatespeed":
			return "@" + s
		default:
			return precedingAt + s
		}
	})
}
