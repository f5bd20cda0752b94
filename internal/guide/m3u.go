package guide

import (
	"fmt"
	"strings"
)

// ChannelEntry is one #EXTINF line plus its stream URL.
type ChannelEntry struct {
	TvgID       string
	TvgChno     string
	TvgLogo     string
	GroupTitle  string
	Name        string
	StreamURL   string
}

// BuildM3U serializes entries into a complete M3U playlist: an #EXTM3U
// header, then per channel an #EXTINF:-1 line with tvg-id, tvg-chno,
// tvg-logo, and group-title attributes followed by the stream URL.
func BuildM3U(entries []ChannelEntry) string {
	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf(
			"#EXTINF:-1 tvg-id=%q tvg-chno=%q tvg-logo=%q group-title=%q,%s\n",
			m3uEscape(e.TvgID), m3uEscape(e.TvgChno), e.TvgLogo, m3uEscape(e.GroupTitle), e.Name))
		sb.WriteString(e.StreamURL)
		sb.WriteString("\n")
	}
	return sb.String()
}

// m3uEscape strips characters that would corrupt the line-based M3U format
// or an already-double-quoted attribute value.
func m3uEscape(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, `"`, "'")
	return s
}
