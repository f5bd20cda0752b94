package resolver

import (
	"fmt"
	"strings"
	"time"
)

// segmentDurationSeconds is the length of the dummy TS segment.
const segmentDurationSeconds = 60

// BuildStreamPlaylist renders the rolling, never-ending HLS playlist served
// at GET /lane/{lane}/stream.m3u8: no EXT-X-ENDLIST, MEDIA-SEQUENCE derived
// from unix time so it only ever increases.
func BuildStreamPlaylist(now time.Time) string {
	seq := now.Unix() / segmentDurationSeconds
	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	sb.WriteString("#EXT-X-VERSION:3\n")
	sb.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", segmentDurationSeconds))
	sb.WriteString(fmt.Sprintf("#EXT-X-MEDIA-SEQUENCE:%d\n", seq))
	for i := 0; i < 3; i++ {
		sb.WriteString(fmt.Sprintf("#EXTINF:%d.0,\n", segmentDurationSeconds))
		sb.WriteString(fmt.Sprintf("segment.ts?seq=%d\n", seq+int64(i)))
	}
	return sb.String()
}
