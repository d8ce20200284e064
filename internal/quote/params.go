package quote

import "strings"

// Values the chart endpoint accepts. Anything else falls back to the
// configured default instead of being forwarded.
var (
	validIntervals = map[string]bool{
		"1m": true, "2m": true, "5m": true, "15m": true, "30m": true, "60m": true, "90m": true,
		"1h": true, "1d": true, "5d": true, "1wk": true, "1mo": true, "3mo": true,
	}
	validRanges = map[string]bool{
		"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
		"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
	}
)

func normalizeParam(raw, def string, valid map[string]bool) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return def, true
	}
	if !valid[v] {
		return def, false
	}
	return v, true
}
