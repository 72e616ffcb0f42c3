package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"example.com/blocus/internal/domain"
)

// DeniedProvider always refuses permission.
type DeniedProvider struct{}

// RequestPermission implements Provider.
func (DeniedProvider) RequestPermission(context.Context) (bool, error) { return false, nil }

// CurrentPosition implements Provider.
func (DeniedProvider) CurrentPosition(context.Context) (domain.Coordinates, error) {
	return domain.Coordinates{}, errors.New("permission denied")
}

// StaticProvider grants permission and reports a fixed position.
type StaticProvider struct {
	Position domain.Coordinates
}

// RequestPermission implements Provider.
func (StaticProvider) RequestPermission(context.Context) (bool, error) { return true, nil }

// CurrentPosition implements Provider.
func (p StaticProvider) CurrentPosition(context.Context) (domain.Coordinates, error) {
	return p.Position, nil
}

// GeoIPProvider approximates the position from the host's public address
// using an ip-api style endpoint answering {"status","lat","lon"}.
type GeoIPProvider struct {
	url    string
	client *http.Client
}

// NewGeoIPProvider constructs a GeoIPProvider.
func NewGeoIPProvider(url string, timeout time.Duration) *GeoIPProvider {
	return &GeoIPProvider{url: url, client: &http.Client{Timeout: timeout}}
}

// RequestPermission implements Provider. Address lookups need no consent.
func (*GeoIPProvider) RequestPermission(context.Context) (bool, error) { return true, nil }

// CurrentPosition implements Provider.
func (p *GeoIPProvider) CurrentPosition(ctx context.Context) (domain.Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return domain.Coordinates{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.Coordinates{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.Coordinates{}, fmt.Errorf("geoip lookup failed: %s", resp.Status)
	}

	var body struct {
		Status  string  `json:"status"`
		Message string  `json:"message"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Coordinates{}, fmt.Errorf("decode geoip response: %w", err)
	}
	if body.Status != "success" {
		return domain.Coordinates{}, fmt.Errorf("geoip lookup failed: %s", body.Message)
	}
	return domain.Coordinates{Latitude: body.Lat, Longitude: body.Lon}, nil
}
