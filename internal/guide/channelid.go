// Package guide implements the guide emitters: serialization of the
// catalog and lane plans into M3U playlists and XMLTV documents.
package guide

import (
	"fmt"
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// ChannelID applies the channel-id stabilization rule shared by every M3U
// and XMLTV emitter, so the DVR links the two artifacts together: the same
// rule produces the <channel id> and the tvg-id for the same virtual
// channel.
func ChannelID(idOrPVID, titleStart string) string {
	basis := idOrPVID
	if basis == "" {
		basis = titleStart
	}
	return "fdl." + sanitize(basis)
}

func sanitize(s string) string {
	s = nonAlnum.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// LaneChannelID is the stable id for a generic-pool virtual channel.
func LaneChannelID(laneID int) string {
	return fmt.Sprintf("fdl.lane-%d", laneID)
}

// AdbChannelID is the stable id for a per-provider virtual channel.
func AdbChannelID(channelID string) string {
	return "fdl." + sanitize(channelID)
}
