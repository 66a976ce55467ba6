package geo

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const providerDistanceMatrix = "distance_matrix"

type DistanceMatrixConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Route is a road distance between two points as reported by the routing provider.
type Route struct {
	DistanceKm   float64 `json:"distance"`
	DurationText string  `json:"duration"`
}

// DistanceMatrix asks the Google Distance Matrix API for road distance
// between a single origin and destination.
type DistanceMatrix struct {
	cfg    DistanceMatrixConfig
	client *http.Client
	log    *zap.Logger
}

func NewDistanceMatrix(cfg DistanceMatrixConfig, client *http.Client, log *zap.Logger) *DistanceMatrix {
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
	return &DistanceMatrix{cfg: cfg, client: client, log: log.Named("distance_matrix")}
}

func (d *DistanceMatrix) Configured() bool {
	return d.cfg.APIKey != ""
}

type distanceMatrixResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Rows         []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int    `json:"value"`
				Text  string `json:"text"`
			} `json:"distance"`
			Duration struct {
				Value int    `json:"value"`
				Text  string `json:"text"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

func formatLatLon(p Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

// RoadDistance returns the first element's distance and duration. The bool is
// false whenever the provider is unconfigured, unreachable or not OK.
func (d *DistanceMatrix) RoadDistance(ctx context.Context, origin, dest Point) (Route, bool) {
	if !d.Configured() {
		d.log.Error("road distance skipped: GOOGLE_MAPS_API_KEY is missing")
		observe(providerDistanceMatrix, outcomeUnconfigured)
		return Route{}, false
	}

	q := url.Values{}
	q.Set("origins", formatLatLon(origin))
	q.Set("destinations", formatLatLon(dest))
	q.Set("key", d.cfg.APIKey)
	endpoint := d.cfg.BaseURL + "/maps/api/distancematrix/json?" + q.Encode()

	var body distanceMatrixResponse
	if err := getJSON(ctx, d.client, d.cfg.Timeout, endpoint, &body); err != nil {
		d.log.Error("distance matrix request failed", zap.Error(err))
		observe(providerDistanceMatrix, outcomeError)
		return Route{}, false
	}

	if body.Status != "OK" {
		d.log.Error("distance matrix returned error status",
			zap.String("status", body.Status),
			zap.String("message", body.ErrorMessage),
		)
		observe(providerDistanceMatrix, outcomeError)
		return Route{}, false
	}

	if len(body.Rows) == 0 || len(body.Rows[0].Elements) == 0 {
		observe(providerDistanceMatrix, outcomeNoResult)
		return Route{}, false
	}

	el := body.Rows[0].Elements[0]
	if el.Status != "OK" {
		d.log.Warn("distance matrix element not routable", zap.String("status", el.Status))
		observe(providerDistanceMatrix, outcomeNoResult)
		return Route{}, false
	}

	observe(providerDistanceMatrix, outcomeOK)
	return Route{
		DistanceKm:   math.Round(float64(el.Distance.Value)/100) / 10,
		DurationText: el.Duration.Text,
	}, true
}
