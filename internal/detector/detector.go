// Package detector implements the on-demand detector: converting a live
// HLS hit on a lane into an actual playback command on whichever client the
// DVR just tuned there.
//
// It satisfies resolver.DetectorTrigger and resolver.AdbDetectorTrigger so
// it can be wired straight into resolver.NewServer without resolver ever
// importing this package.
package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/dvrapi"
	"github.com/fieldguide/dvrguide/internal/httpclient"
	"github.com/fieldguide/dvrguide/internal/resolver"
)

// supportedPlatforms restricts the candidate client search to the TV-shell
// platforms (Apple TV, Android TV, Fire TV) whose clients can be commanded
// to play a recording. Matched against the platform string lowercased with
// spaces stripped, since DVR versions report both "AppleTV" and "Apple TV".
var supportedPlatforms = []string{"appletv", "androidtv", "firetv"}

// seenAtFreshness is the window within which a client's last DVR contact
// counts as "currently tuning".
const seenAtFreshness = 90 * time.Second

// stepTimeout bounds every individual network step; runTimeout caps the
// whole orchestration, the initial 2s wait included, so a run stays under
// 20s however many steps and candidate clients it goes through.
const (
	stepTimeout = 5 * time.Second
	runTimeout  = 18 * time.Second
)

// Config wires the Detector to the rest of the process. Every field is
// required except DefaultAPIPort (used only when the DVR omits a client's
// api_port), Debounce (3s when unset) and HTTPClient/Now/Sleep, which
// default sensibly.
type Config struct {
	Store                  *catalog.Store
	PrefsLoader            resolver.PreferencesLoader
	PaddingMinutes         int
	DefaultPriority        func(string) int
	ServicesForAdbProvider func(code string) []string
	DVR                    *dvrapi.Client
	ImportMountPath        string
	DefaultAPIPort         int
	Debounce               time.Duration
	Log                    *logrus.Entry

	HTTPClient *http.Client
	Now        func() time.Time
	Sleep      func(time.Duration)
}

// Detector runs the debounced, best-effort client-orchestration pipeline.
type Detector struct {
	cfg Config

	mu        sync.Mutex
	lastSpawn map[string]time.Time
}

// New builds a Detector from cfg, applying defaults for optional fields.
func New(cfg Config) *Detector {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpclient.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	if cfg.DefaultAPIPort == 0 {
		cfg.DefaultAPIPort = 57000
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 3 * time.Second
	}
	return &Detector{cfg: cfg, lastSpawn: map[string]time.Time{}}
}

// TriggerLane satisfies resolver.DetectorTrigger: a hit on
// /lane/{lane}/stream.m3u8 spawns (debounced) the detector for that lane.
func (d *Detector) TriggerLane(laneID int) {
	key := fmt.Sprintf("lane:%d", laneID)
	if !d.shouldSpawn(key) {
		return
	}
	lane := laneID
	go d.run(key, fmt.Sprintf("lane%d.strmlnk", lane), strconv.Itoa(lane), func(ctx context.Context) (resolver.WhatsOn, error) {
		prefs, err := d.cfg.PrefsLoader(ctx)
		if err != nil {
			return resolver.WhatsOn{}, err
		}
		return resolver.Resolve(ctx, d.cfg.Store, prefs, lane, d.cfg.Now(), d.cfg.PaddingMinutes, d.cfg.DefaultPriority)
	})
}

// TriggerAdbLane satisfies resolver.AdbDetectorTrigger: a hit on
// /adb/{provider}/{laneNumber}/stream.m3u8 spawns the provider-scoped
// equivalent.
func (d *Detector) TriggerAdbLane(providerCode string, laneNumber int) {
	key := fmt.Sprintf("adb:%s:%d", providerCode, laneNumber)
	if !d.shouldSpawn(key) {
		return
	}
	go d.run(key, fmt.Sprintf("adb_%s_%d.strmlnk", providerCode, laneNumber), strconv.Itoa(laneNumber), func(ctx context.Context) (resolver.WhatsOn, error) {
		prefs, err := d.cfg.PrefsLoader(ctx)
		if err != nil {
			return resolver.WhatsOn{}, err
		}
		serviceSet := map[string]bool{}
		for _, svc := range d.cfg.ServicesForAdbProvider(providerCode) {
			serviceSet[svc] = true
		}
		return resolver.ResolveAdb(ctx, d.cfg.Store, prefs, providerCode, laneNumber, d.cfg.Now(), serviceSet, d.cfg.DefaultPriority)
	})
}

// shouldSpawn reports whether key's last spawn was more than Debounce ago,
// recording the attempt either way.
func (d *Detector) shouldSpawn(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.cfg.Now()
	if last, ok := d.lastSpawn[key]; ok && now.Sub(last) < d.cfg.Debounce {
		return false
	}
	d.lastSpawn[key] = now
	return true
}

// resolveFunc is the injected "what's on this lane" call for one run,
// parameterized so TriggerLane and TriggerAdbLane can share run's body.
type resolveFunc func(ctx context.Context) (resolver.WhatsOn, error)

// run executes the full detector orchestration for one HLS hit. Every
// error is logged and swallowed: a detector failure must never affect the
// dummy stream the DVR keeps being served.
func (d *Detector) run(key, sidecarName, laneSuffix string, resolve resolveFunc) {
	log := d.cfg.Log.WithField("run", key)
	ctx, cancelRun := context.WithTimeout(context.Background(), runTimeout)
	defer cancelRun()

	d.cfg.Sleep(2 * time.Second)

	client, ok := d.findTuningClient(ctx, log, laneSuffix)
	if !ok {
		log.Info("no matching tuning client found, skipping playback trigger")
		return
	}
	log = log.WithFields(logrus.Fields{"client_ip": client.IP, "platform": client.Platform})

	deeplinkFormat := "scheme"
	if isAndroidOrFire(client.Platform) {
		deeplinkFormat = "http"
	}

	resolveCtx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()
	whatsOn, err := resolve(resolveCtx)
	if err != nil {
		log.WithError(err).Warn("resolve failed")
		return
	}
	if !whatsOn.OK {
		log.Info("nothing scheduled, skipping playback trigger")
		return
	}
	deeplink := whatsOn.DeeplinkURL
	if deeplinkFormat == "http" {
		deeplink = whatsOn.DeeplinkURLFull
	}
	if deeplink == "" {
		log.Warn("resolved result has no deeplink in the requested format")
		return
	}

	fileID, err := d.orchestratePlayback(ctx, log, sidecarName, deeplink, client)
	if err != nil {
		log.WithError(err).Warn("playback orchestration failed")
		return
	}
	log.WithField("file_id", fileID).Info("playback triggered")
}

// tuningClient is the per-client candidate this run settled on.
type tuningClient struct {
	IP       string
	Platform string
	APIPort  int
}

// findTuningClient enumerates connected players, filters to supported
// platforms and recent seen_at, then polls
// each candidate's local /api/status for one playing a channel whose name
// ends in laneSuffix.
func (d *Detector) findTuningClient(ctx context.Context, log *logrus.Entry, laneSuffix string) (tuningClient, bool) {
	listCtx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()
	clients, err := d.cfg.DVR.ClientsInfo(listCtx)
	if err != nil {
		log.WithError(err).Warn("clients info query failed")
		return tuningClient{}, false
	}

	var supported []dvrapi.ClientInfo
	for _, c := range clients {
		if isSupportedPlatform(c.Platform) {
			supported = append(supported, c)
		}
	}

	candidates := filterFreshSeenAt(supported, d.cfg.Now())
	if len(candidates) == 0 {
		// Fallback: no seen_at data recent enough, try every supported platform.
		candidates = supported
	}

	for _, c := range candidates {
		status, ok := d.pollClientStatus(ctx, log, c)
		if !ok {
			continue
		}
		if strings.EqualFold(status.Status, "playing") && strings.HasSuffix(strings.TrimSpace(status.Channel), laneSuffix) {
			port := c.APIPort
			if port == 0 {
				port = d.cfg.DefaultAPIPort
			}
			return tuningClient{IP: c.IP, Platform: c.Platform, APIPort: port}, true
		}
	}
	return tuningClient{}, false
}

// clientStatus is the body of GET http://{ip}:{api_port}/api/status.
type clientStatus struct {
	Status  string `json:"status"`
	Channel string `json:"channel"`
}

func (d *Detector) pollClientStatus(ctx context.Context, log *logrus.Entry, c dvrapi.ClientInfo) (clientStatus, bool) {
	port := c.APIPort
	if port == 0 {
		port = d.cfg.DefaultAPIPort
	}
	reqCtx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()
	url := fmt.Sprintf("http://%s:%d/api/status", c.IP, port)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return clientStatus{}, false
	}
	resp, err := d.cfg.HTTPClient.Do(req)
	if err != nil {
		log.WithError(err).WithField("client_ip", c.IP).Debug("client status poll failed")
		return clientStatus{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return clientStatus{}, false
	}
	var out clientStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return clientStatus{}, false
	}
	return out, true
}

// orchestratePlayback writes the sidecar, locates its file id on the DVR,
// reprocesses it, then POSTs the client-local play trigger.
func (d *Detector) orchestratePlayback(ctx context.Context, log *logrus.Entry, sidecarName, deeplink string, client tuningClient) (string, error) {
	path := filepath.Join(d.cfg.ImportMountPath, sidecarName)
	if err := os.WriteFile(path, []byte(deeplink), 0o644); err != nil {
		return "", fmt.Errorf("write sidecar %s: %w", path, err)
	}
	log.WithField("sidecar", path).Debug("sidecar written")

	listCtx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()
	files, err := d.cfg.DVR.Files(listCtx)
	if err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}
	fileID := ""
	for _, f := range files {
		if strings.HasSuffix(f.Path, sidecarName) {
			fileID = f.ID
			break
		}
	}
	if fileID == "" {
		return "", fmt.Errorf("sidecar %s not yet indexed by DVR", sidecarName)
	}

	reprocessCtx, cancel2 := context.WithTimeout(ctx, stepTimeout)
	defer cancel2()
	if err := d.cfg.DVR.ReprocessFile(reprocessCtx, fileID); err != nil {
		return "", fmt.Errorf("reprocess: %w", err)
	}

	playCtx, cancel3 := context.WithTimeout(ctx, stepTimeout)
	defer cancel3()
	if err := dvrapi.PlayRecording(playCtx, client.IP, client.APIPort, fileID); err != nil {
		return "", fmt.Errorf("play recording: %w", err)
	}
	return fileID, nil
}

// BootstrapSidecars writes an about:blank lane{N}.strmlnk for each generic
// lane so the DVR has something to index before the first real detector
// run, then triggers a DVR scan.
func BootstrapSidecars(ctx context.Context, dvr *dvrapi.Client, importMountPath string, laneCount int, log *logrus.Entry) error {
	if importMountPath == "" {
		return nil
	}
	for n := 1; n <= laneCount; n++ {
		path := filepath.Join(importMountPath, fmt.Sprintf("lane%d.strmlnk", n))
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte("about:blank"), 0o644); err != nil {
			return fmt.Errorf("detector: bootstrap sidecar %s: %w", path, err)
		}
	}
	if dvr == nil {
		return nil
	}
	if err := dvr.ScanScanner(ctx); err != nil {
		log.WithError(err).Warn("bootstrap scanner trigger failed")
	}
	return nil
}

func normalizePlatform(platform string) string {
	return strings.ReplaceAll(strings.ToLower(platform), " ", "")
}

func isSupportedPlatform(platform string) bool {
	norm := normalizePlatform(platform)
	for _, p := range supportedPlatforms {
		if strings.Contains(norm, p) {
			return true
		}
	}
	return false
}

func isAndroidOrFire(platform string) bool {
	norm := normalizePlatform(platform)
	return strings.Contains(norm, "androidtv") || strings.Contains(norm, "firetv")
}

func filterFreshSeenAt(clients []dvrapi.ClientInfo, now time.Time) []dvrapi.ClientInfo {
	var out []dvrapi.ClientInfo
	for _, c := range clients {
		if c.SeenAt == 0 {
			continue
		}
		age := now.Sub(time.Unix(c.SeenAt, 0))
		if age >= 0 && age <= seenAtFreshness {
			out = append(out, c)
		}
	}
	return out
}

