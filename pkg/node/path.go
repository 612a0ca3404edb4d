package node

import "strings"

// RootMarker is the formatted form of the root path.
const RootMarker = "$"

// FormatPath renders path as a bracket lookup expression such as
// $["customer"][0]["name"]. Key segments are quoted verbatim; embedded
// quotes are not escaped.
func FormatPath(path Path) string {
	if len(path) == 0 {
		return RootMarker
	}
	var b strings.Builder
	b.WriteString(RootMarker)
	for _, seg := range path {
		b.WriteByte('[')
		b.WriteString(seg.String())
		b.WriteByte(']')
	}
	return b.String()
}
