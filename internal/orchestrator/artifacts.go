package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/guide"
)

// Artifact file names written directly under Config.OutDir. These
// are stable names consumers (the DVR's M3U/XMLTV sources) point at once
// and never change, unlike the timestamped debug artifacts below.
const (
	fileDirectM3U      = "direct.m3u"
	fileDirectXMLTV    = "direct.xml"
	fileLanesM3U       = "multisource_lanes.m3u"
	fileLanesXMLTV     = "multisource_lanes.xml"
	fileLanesChromeM3U = "multisource_lanes_chrome.m3u"
	fileAdbM3U         = "adb_lanes.m3u"
	fileAdbXMLTV       = "adb_lanes.xml"
)

// debugArtifactsToKeep bounds how many timestamped copies of each debug
// artifact (missing-deeplinks diagnostic, Amazon scrape CSV) survive a
// pruning pass.
const debugArtifactsToKeep = 20

// ArtifactStats summarizes one artifact-emission pass.
type ArtifactStats struct {
	DirectEvents   int
	GenericLanes   int
	AdbProviders   int
	MissingDirect  int
}

// WriteArtifacts regenerates every guide artifact from the current catalog
// state and writes it under cfg.OutDir, then prunes the accumulating debug
// artifacts.
func WriteArtifacts(ctx context.Context, store *catalog.Store, prefs catalog.Preferences, outDir, resolverBaseURL string, daysAhead int, now time.Time, runID string, log *logrus.Entry) (ArtifactStats, error) {
	var stats ArtifactStats

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return stats, fmt.Errorf("orchestrator: ensure out dir: %w", err)
	}
	debugDir := filepath.Join(outDir, "debug")
	if err := os.MkdirAll(debugDir, 0o755); err != nil {
		return stats, fmt.Errorf("orchestrator: ensure debug dir: %w", err)
	}

	direct, err := guide.BuildDirect(ctx, store, prefs, daysAhead, now, resolverBaseURL)
	if err != nil {
		return stats, fmt.Errorf("orchestrator: build direct guide: %w", err)
	}
	if err := writeFile(outDir, fileDirectM3U, []byte(direct.M3U)); err != nil {
		return stats, err
	}
	if err := writeFile(outDir, fileDirectXMLTV, direct.XMLTV); err != nil {
		return stats, err
	}
	stats.MissingDirect = len(direct.Missing)
	if err := writeMissingDeeplinksDiagnostic(outDir, debugDir, runID, direct.Missing); err != nil {
		return stats, err
	}

	lanesResult, err := guide.BuildLanes(ctx, store, resolverBaseURL)
	if err != nil {
		return stats, fmt.Errorf("orchestrator: build lanes guide: %w", err)
	}
	if err := writeFile(outDir, fileLanesM3U, []byte(lanesResult.M3U)); err != nil {
		return stats, err
	}
	if err := writeFile(outDir, fileLanesXMLTV, lanesResult.XMLTV); err != nil {
		return stats, err
	}
	if err := writeFile(outDir, fileLanesChromeM3U, []byte(lanesResult.ChromeM3U)); err != nil {
		return stats, err
	}

	adb, err := guide.BuildAdbGuide(ctx, store, prefs, resolverBaseURL)
	if err != nil {
		return stats, fmt.Errorf("orchestrator: build adb guide: %w", err)
	}
	if err := writeFile(outDir, fileAdbM3U, []byte(adb.M3U)); err != nil {
		return stats, err
	}
	if err := writeFile(outDir, fileAdbXMLTV, adb.XMLTV); err != nil {
		return stats, err
	}
	stats.AdbProviders = len(adb.PerProviderM3U)
	for code, body := range adb.PerProviderM3U {
		if err := writeFile(outDir, fmt.Sprintf("adb_lanes_%s.m3u", code), []byte(body)); err != nil {
			return stats, err
		}
	}

	if err := pruneDebugArtifacts(debugDir, "missing_direct_deeplinks_*.json", debugArtifactsToKeep); err != nil {
		log.WithError(err).Warn("prune missing-deeplinks diagnostics failed")
	}
	if err := pruneDebugArtifacts(debugDir, "amazon_scrape_*.csv", debugArtifactsToKeep); err != nil {
		log.WithError(err).Warn("prune amazon scrape debug artifacts failed")
	}

	log.WithFields(logrus.Fields{
		"missing_direct": stats.MissingDirect,
		"adb_providers":  stats.AdbProviders,
	}).Info("artifacts written")
	return stats, nil
}

// writeMissingDeeplinksDiagnostic writes the stable missing_direct_deeplinks.json
// consumers point at, plus a per-run copy under debug/ that pruning bounds.
func writeMissingDeeplinksDiagnostic(outDir, debugDir, runID string, missing []guide.MissingDeeplink) error {
	if missing == nil {
		missing = []guide.MissingDeeplink{}
	}
	body, err := json.MarshalIndent(missing, "", "  ")
	if err != nil {
		return fmt.Errorf("orchestrator: marshal missing deeplinks: %w", err)
	}
	if err := writeFile(outDir, "missing_direct_deeplinks.json", body); err != nil {
		return err
	}
	name := fmt.Sprintf("missing_direct_deeplinks_%s.json", runID)
	return writeFile(debugDir, name, body)
}

func writeFile(dir, name string, body []byte) error {
	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("orchestrator: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("orchestrator: finalize %s: %w", name, err)
	}
	return nil
}

// pruneDebugArtifacts keeps the keep newest files matching pattern (by
// modification time) in dir and removes the rest.
func pruneDebugArtifacts(dir, pattern string, keep int) error {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return fmt.Errorf("orchestrator: glob %s: %w", pattern, err)
	}
	if len(matches) <= keep {
		return nil
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	infos := make([]fileInfo, 0, len(matches))
	for _, m := range matches {
		fi, err := os.Stat(m)
		if err != nil {
			continue
		}
		infos = append(infos, fileInfo{path: m, modTime: fi.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].modTime.After(infos[j].modTime) })

	for _, fi := range infos[keep:] {
		if err := os.Remove(fi.path); err != nil {
			return fmt.Errorf("orchestrator: remove stale debug artifact %s: %w", fi.path, err)
		}
	}
	return nil
}
