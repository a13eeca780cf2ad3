// Audius implementation of [Catalog]
//
// API reference: https://docs.audius.org/developers/api
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/melodify/internal/models"
	"github.com/desertthunder/melodify/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultAudiusDiscovery = "https://api.audius.co"
	audiusContentNode      = "https://creatornode.audius.co/content/"
	audiusIDPrefix         = "audius-"
)

// TrendingWindows lists the accepted values for [AudiusOpts.TrendingWindow].
var TrendingWindows = []string{"week", "month", "year"}

// AudiusUser is the uploader embedded in track responses.
type AudiusUser struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
}

// AudiusTrack represents a track in Audius API responses.
type AudiusTrack struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	User        AudiusUser        `json:"user"`
	Duration    float64           `json:"duration"` // seconds
	Artwork     map[string]string `json:"artwork"`
	PlayCount   int               `json:"play_count"`
	Permalink   string            `json:"permalink"`
	Genre       string            `json:"genre"`
	Mood        string            `json:"mood"`
	Tags        string            `json:"tags"`
	ReleaseDate string            `json:"release_date"`
}

// AudiusOpts configures an [Audius] client.
type AudiusOpts struct {
	AppName           string
	DiscoveryURL      string
	RequestsPerSecond float64
	Timeout           time.Duration
	TrendingWindow    string // week, month or year
	HTTPClient        *http.Client
	Logger            *log.Logger
}

// Audius is an unauthenticated client for the Audius public API.
//
// API hosts are discovered on first use. When a request fails the client rotates to the next
// known host, rediscovering once the list is exhausted. Requests are throttled client-side.
type Audius struct {
	appName      string
	discoveryURL string
	window       string
	client       *http.Client
	limiter      *rate.Limiter
	logger       *log.Logger

	mu    sync.Mutex
	hosts []string
	host  string
}

// NewAudius creates a new Audius client.
func NewAudius(opts AudiusOpts) *Audius {
	if opts.AppName == "" {
		opts.AppName = "melodify"
	}
	if opts.DiscoveryURL == "" {
		opts.DiscoveryURL = defaultAudiusDiscovery
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.TrendingWindow == "" {
		opts.TrendingWindow = "week"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Audius{
		appName:      opts.AppName,
		discoveryURL: strings.TrimRight(opts.DiscoveryURL, "/"),
		window:       opts.TrendingWindow,
		client:       opts.HTTPClient,
		limiter:      rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:       shared.WithLogger(opts.Logger, "component", "catalog", "provider", "audius"),
	}
}

// Name returns the service name.
func (a *Audius) Name() string { return "Audius" }

// SearchTracks calls GET /v1/tracks/search.
func (a *Audius) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}

	params := url.Values{"query": {query}}
	setLimit(params, limit)

	var data []AudiusTrack
	if err := a.request(ctx, "/v1/tracks/search", params, &data); err != nil {
		return nil, err
	}
	return a.mapTracks(data), nil
}

// GetTrendingTracks calls GET /v1/tracks/trending for the configured window.
func (a *Audius) GetTrendingTracks(ctx context.Context, limit int) ([]models.Track, error) {
	params := url.Values{"time": {a.window}}
	setLimit(params, limit)

	var data []AudiusTrack
	if err := a.request(ctx, "/v1/tracks/trending", params, &data); err != nil {
		return nil, err
	}
	return a.mapTracks(data), nil
}

// GetTrack calls GET /v1/tracks/{id}. Library ids ("audius-<id>") are accepted.
func (a *Audius) GetTrack(ctx context.Context, id string) (*models.Track, error) {
	id = strings.TrimPrefix(id, audiusIDPrefix)
	if id == "" {
		return nil, fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	var data *AudiusTrack
	if err := a.request(ctx, "/v1/tracks/"+url.PathEscape(id), url.Values{}, &data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}

	tracks := a.mapTracks([]AudiusTrack{*data})
	return &tracks[0], nil
}

// StreamURL builds the stream endpoint on the selected host, or "" before discovery.
func (a *Audius) StreamURL(id string) string {
	a.mu.Lock()
	host := a.host
	a.mu.Unlock()
	if host == "" {
		return ""
	}
	return a.streamURL(host, strings.TrimPrefix(id, audiusIDPrefix))
}

func (a *Audius) streamURL(host, id string) string {
	return host + "/v1/tracks/" + url.PathEscape(id) + "/stream?" + url.Values{"app_name": {a.appName}}.Encode()
}

func (a *Audius) request(ctx context.Context, endpoint string, params url.Values, result any) error {
	host, err := a.currentHost(ctx)
	if err != nil {
		return err
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	params.Set("app_name", a.appName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, host+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		a.rotate(host)
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.rotate(host)
		return fmt.Errorf("%w: audius %s: status %d", shared.ErrAPIRequest, endpoint, resp.StatusCode)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, result); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

func (a *Audius) currentHost(ctx context.Context) (string, error) {
	a.mu.Lock()
	host := a.host
	a.mu.Unlock()
	if host != "" {
		return host, nil
	}

	hosts, err := a.discover(ctx)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.hosts = hosts
	a.host = hosts[0]
	a.logger.Debug("selected api host", "host", a.host)
	return a.host, nil
}

func (a *Audius) discover(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.discoveryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: host discovery: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: host discovery: status %d", shared.ErrServiceUnavailable, resp.StatusCode)
	}

	var body struct {
		Data []string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: host discovery: %v", shared.ErrServiceUnavailable, err)
	}

	hosts := make([]string, 0, len(body.Data))
	for _, h := range body.Data {
		if h = strings.TrimRight(strings.TrimSpace(h), "/"); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%w: no audius hosts available", shared.ErrServiceUnavailable)
	}
	return hosts, nil
}

// rotate moves off a failing host. With no alternative the selection is cleared so the next
// request rediscovers.
func (a *Audius) rotate(failed string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.host != failed {
		return
	}
	if len(a.hosts) <= 1 {
		a.host = ""
		a.hosts = nil
		return
	}

	next := 0
	for i, h := range a.hosts {
		if h == failed {
			next = (i + 1) % len(a.hosts)
			break
		}
	}
	a.host = a.hosts[next]
	a.logger.Info("switched api host", "from", failed, "to", a.host)
}

func (a *Audius) mapTracks(data []AudiusTrack) []models.Track {
	a.mu.Lock()
	host := a.host
	a.mu.Unlock()

	tracks := make([]models.Track, 0, len(data))
	for _, t := range data {
		tracks = append(tracks, a.mapTrack(t, host))
	}
	return tracks
}

func (a *Audius) mapTrack(t AudiusTrack, host string) models.Track {
	title := t.Title
	if title == "" {
		title = "Unknown Title"
	}
	artist := t.User.Name
	if artist == "" {
		artist = "Unknown Artist"
	}

	track := models.Track{
		ID:      audiusIDPrefix + t.ID,
		Title:   title,
		Artist:  artist,
		Artwork: artworkURL(t.Artwork),
		URL:     a.streamURL(host, t.ID),
		Format:  models.FormatStreaming,
		IsLocal: false,
		Source:  models.SourceAudius,
		Metadata: map[string]any{
			"audius_id":    t.ID,
			"play_count":   t.PlayCount,
			"permalink":    t.Permalink,
			"genre":        t.Genre,
			"mood":         t.Mood,
			"tags":         t.Tags,
			"release_date": t.ReleaseDate,
			"user_id":      t.User.ID,
		},
	}
	if t.Duration > 0 {
		track.Duration = models.Seconds(t.Duration)
	}
	return track
}

func artworkURL(artwork map[string]string) string {
	art := artwork["150x150"]
	if art == "" {
		art = artwork["480x480"]
	}
	if art != "" && !strings.HasPrefix(art, "http") {
		art = audiusContentNode + art
	}
	return art
}

func setLimit(params url.Values, limit int) {
	if limit > 0 {
		params.Set("limit", fmt.Sprint(limit))
	}
}

// IsNotFound reports whether err means the catalog has no such track.
func IsNotFound(err error) bool { return errors.Is(err, shared.ErrTrackNotFound) }
