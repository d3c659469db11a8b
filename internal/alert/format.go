// Package alert builds and dispatches buy notifications for the tracked
// token.
package alert

import "strconv"

// FormatNumber renders a magnitude with a B/M/K suffix above the
// respective thresholds, two decimals otherwise.
func FormatNumber(v float64) string {
	switch {
	case v >= 1_000_000_000:
		return strconv.FormatFloat(v/1_000_000_000, 'f', 2, 64) + "B"
	case v >= 1_000_000:
		return strconv.FormatFloat(v/1_000_000, 'f', 2, 64) + "M"
	case v >= 1_000:
		return strconv.FormatFloat(v/1_000, 'f', 2, 64) + "K"
	default:
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
}

// FormatPrice renders a USD price with precision scaled to its
// magnitude, so micro-cap prices keep their significant digits.
func FormatPrice(price float64) string {
	switch {
	case price < 0.00001:
		return strconv.FormatFloat(price, 'f', 8, 64)
	case price < 0.001:
		return strconv.FormatFloat(price, 'f', 6, 64)
	case price < 1:
		return strconv.FormatFloat(price, 'f', 4, 64)
	default:
		return strconv.FormatFloat(price, 'f', 2, 64)
	}
}

// ShortenAddress abbreviates a base58 address or signature for display.
func ShortenAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
