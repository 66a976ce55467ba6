package geo

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const providerOpenCage = "opencage"

type GeocoderConfig struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	CacheSize int
}

// Geocoder resolves free-text locations through the OpenCage API.
// Every failure degrades to a nil point; callers treat nil as "unknown".
type Geocoder struct {
	cfg    GeocoderConfig
	client *http.Client
	log    *zap.Logger

	mu    sync.Mutex
	cache map[string]Point
	order []string
}

func NewGeocoder(cfg GeocoderConfig, client *http.Client, log *zap.Logger) *Geocoder {
	if client == nil {
		client = &http.Client{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Geocoder{
		cfg:    cfg,
		client: client,
		log:    log.Named("geocoder"),
		cache:  make(map[string]Point),
	}
}

type openCageResponse struct {
	Status struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Results []struct {
		Geometry struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"geometry"`
	} `json:"results"`
}

func cacheKey(location string) string {
	return strings.ToLower(strings.Join(strings.Fields(location), " "))
}

// Geocode returns the coordinates of the best match for location, or nil.
func (g *Geocoder) Geocode(ctx context.Context, location string) *Point {
	key := cacheKey(location)
	if key == "" {
		return nil
	}

	if p, ok := g.cached(key); ok {
		observe(providerOpenCage, outcomeCached)
		return &p
	}

	if g.cfg.APIKey == "" {
		g.log.Error("geocoding skipped: OPENCAGE_API_KEY is missing")
		observe(providerOpenCage, outcomeUnconfigured)
		return nil
	}

	q := url.Values{}
	q.Set("q", location)
	q.Set("key", g.cfg.APIKey)
	q.Set("limit", "1")
	q.Set("no_annotations", "1")
	endpoint := g.cfg.BaseURL + "/geocode/v1/json?" + q.Encode()

	var body openCageResponse
	if err := getJSON(ctx, g.client, g.cfg.Timeout, endpoint, &body); err != nil {
		g.log.Error("geocoding request failed", zap.String("location", location), zap.Error(err))
		observe(providerOpenCage, outcomeError)
		return nil
	}

	if body.Status.Code != 0 && body.Status.Code != http.StatusOK {
		g.log.Error("geocoding provider returned error status",
			zap.String("location", location),
			zap.Int("code", body.Status.Code),
			zap.String("message", body.Status.Message),
		)
		observe(providerOpenCage, outcomeError)
		return nil
	}

	if len(body.Results) == 0 {
		g.log.Warn("geocoding found no coordinates", zap.String("location", location))
		observe(providerOpenCage, outcomeNoResult)
		return nil
	}

	p := Point{Lat: body.Results[0].Geometry.Lat, Lon: body.Results[0].Geometry.Lng}
	if !p.Valid() {
		g.log.Warn("geocoding returned invalid coordinates", zap.String("location", location))
		observe(providerOpenCage, outcomeNoResult)
		return nil
	}

	g.store(key, p)
	g.log.Debug("geocoding succeeded",
		zap.String("location", location),
		zap.Float64("lat", p.Lat),
		zap.Float64("lon", p.Lon),
	)
	observe(providerOpenCage, outcomeOK)
	return &p
}

func (g *Geocoder) cached(key string) (Point, bool) {
	if g.cfg.CacheSize <= 0 {
		return Point{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.cache[key]
	return p, ok
}

// store keeps successful lookups only, evicting the oldest entry when full.
func (g *Geocoder) store(key string, p Point) {
	if g.cfg.CacheSize <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.cache[key]; ok {
		g.cache[key] = p
		return
	}
	if len(g.order) >= g.cfg.CacheSize {
		oldest := g.order[0]
		g.order = g.order[1:]
		delete(g.cache, oldest)
	}
	g.cache[key] = p
	g.order = append(g.order, key)
}
