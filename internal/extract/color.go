package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var rgbaPattern = regexp.MustCompile(`rgba\((\d+),\s*(\d+),\s*(\d+),\s*(\d+(?:\.\d+)?)\)`)

// RGBAToHex converts an "rgba(r, g, b, a)" color to "#rrggbb", dropping alpha.
// Channels above 255 are clamped.
// Any other input, including "" and strings that start with "rgba" but do
// not parse, is returned unchanged.
func RGBAToHex(s string) string {
	if !strings.HasPrefix(s, "rgba") {
		return s
	}

	m := rgbaPattern.FindStringSubmatch(s)
	if m == nil {
		return s
	}

	var b strings.Builder
	b.WriteByte('#')
	for _, channel := range m[1:4] {
		n, err := strconv.Atoi(channel)
		if err != nil {
			return s
		}
		fmt.Fprintf(&b, "%02x", min(n, 255))
	}
	return b.String()
}
