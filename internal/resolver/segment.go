package resolver

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// BuildDummySegment shells out to ffmpeg to render the ~60s black
// 1280x720 + silent-audio mpegts segment served at /lane/{lane}/segment.ts.
// The segment is built once at startup and held in memory; if ffmpeg is
// unavailable the segment route 404s and the detector stays operational.
func BuildDummySegment(log *logrus.Entry) ([]byte, error) {
	dir, err := os.MkdirTemp("", "dvrguide-segment-*")
	if err != nil {
		return nil, fmt.Errorf("resolver: mktemp for segment build: %w", err)
	}
	defer os.RemoveAll(dir)

	outPath := filepath.Join(dir, "segment.ts")
	args := []string{
		"-y",
		"-f", "lavfi", "-i", fmt.Sprintf("color=c=black:s=1280x720:d=%d", segmentDurationSeconds),
		"-f", "lavfi", "-i", fmt.Sprintf("anullsrc=r=48000:cl=stereo:d=%d", segmentDurationSeconds),
		"-c:v", "libx264", "-c:a", "aac",
		"-f", "mpegts",
		outPath,
	}
	cmd := exec.Command("ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		log.WithField("step", "build_segment").WithError(err).Warn("ffmpeg unavailable, segment route will 404")
		return nil, fmt.Errorf("resolver: ffmpeg segment build: %v: %s", err, stderr.String())
	}

	body, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("resolver: read built segment: %w", err)
	}
	log.WithField("step", "build_segment").WithField("bytes", len(body)).Info("dummy segment built")
	return body, nil
}
