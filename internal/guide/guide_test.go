package guide

import (
	"strings"
	"testing"
	"time"
)

func TestBuildXMLTV_EscapesAndFormatsTime(t *testing.T) {
	start := time.Date(2026, 7, 29, 18, 0, 0, 0, time.UTC)
	stop := start.Add(2 * time.Hour)

	channels := []Channel{{ID: "fdl.lane-1", DisplayName: "Lane 1"}}
	programmes := []Programme{{
		ChannelID: "fdl.lane-1", Start: start, Stop: stop,
		Title: "USA vs Mexico", Desc: "Soccer - (World Cup) - Final", Live: true,
	}}

	body, err := BuildXMLTV(channels, programmes)
	if err != nil {
		t.Fatalf("BuildXMLTV: %v", err)
	}
	out := string(body)
	if !strings.Contains(out, `start="20260729180000 +0000"`) {
		t.Errorf("expected formatted start time, got %s", out)
	}
	if !strings.Contains(out, "<live>") {
		t.Errorf("expected <live/> tag for live programme, got %s", out)
	}
	if !strings.Contains(out, "USA vs Mexico") {
		t.Errorf("expected title in output, got %s", out)
	}
}

func TestBuildM3U_FormatsExtinf(t *testing.T) {
	entries := []ChannelEntry{{
		TvgID: "fdl.lane-1", TvgChno: "9001", TvgLogo: "http://img/logo.png",
		GroupTitle: "Sports Lanes", Name: "Lane 1", StreamURL: "http://host/lane/1/stream.m3u8",
	}}
	out := BuildM3U(entries)
	if !strings.HasPrefix(out, "#EXTM3U\n") {
		t.Fatalf("expected #EXTM3U header, got %s", out)
	}
	if !strings.Contains(out, `tvg-id="fdl.lane-1"`) {
		t.Errorf("expected tvg-id attribute, got %s", out)
	}
	if !strings.Contains(out, "http://host/lane/1/stream.m3u8") {
		t.Errorf("expected stream URL line, got %s", out)
	}
}

func TestChannelID_StableAndSanitized(t *testing.T) {
	a := ChannelID("evt-123", "")
	b := ChannelID("evt-123", "")
	if a != b {
		t.Fatalf("ChannelID not stable: %s vs %s", a, b)
	}
	if strings.Contains(a, " ") {
		t.Errorf("expected sanitized channel id, got %s", a)
	}

	fallback := ChannelID("", "Some Title!!")
	if !strings.HasPrefix(fallback, "fdl.") {
		t.Errorf("expected fdl. prefix, got %s", fallback)
	}
}

func TestLaneChannelID_AdbChannelID(t *testing.T) {
	if got := LaneChannelID(9001); got != "fdl.lane-9001" {
		t.Errorf("LaneChannelID = %s, want fdl.lane-9001", got)
	}
	if got := AdbChannelID("sportscenter01"); got != "fdl.sportscenter01" {
		t.Errorf("AdbChannelID = %s, want fdl.sportscenter01", got)
	}
}
