// Package geocode resolves place names to coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/geotag/internal/logging"
	"github.com/ppiankov/geotag/internal/model"
	"github.com/ppiankov/geotag/internal/util"
)

const maxBodyBytes = 1 << 20

// Geocoder resolves a place name. Lookup failures produce an absent result and
// a nil error; only context cancellation is returned as an error.
type Geocoder interface {
	Geocode(ctx context.Context, place string) (model.GeoResult, error)
}

// NominatimClient queries a Nominatim /search endpoint
type NominatimClient struct {
	client    *retryablehttp.Client
	searchURL string
	userAgent string
	limiter   *Limiter
}

// NewNominatimClient creates a client. limiter may be shared across clients; nil disables limiting.
func NewNominatimClient(cfg model.GeocoderConfig, limiter *Limiter) *NominatimClient {
	return newNominatimClient(cfg, limiter, nil)
}

func newNominatimClient(cfg model.GeocoderConfig, limiter *Limiter, backoff retryablehttp.Backoff) *NominatimClient {
	return &NominatimClient{
		client: util.NewRetryableClient(util.ClientOptions{
			Timeout:    cfg.Timeout,
			RetryMax:   cfg.Retries,
			HTTPProxy:  cfg.HTTPProxy,
			HTTPSProxy: cfg.HTTPSProxy,
			Backoff:    backoff,
		}),
		searchURL: strings.TrimRight(cfg.BaseURL, "/") + "/search",
		userAgent: cfg.UserAgent,
		limiter:   limiter,
	}
}

type searchHit struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Geocode implements Geocoder using the first search hit
func (c *NominatimClient) Geocode(ctx context.Context, place string) (model.GeoResult, error) {
	log := logging.GetLogger().WithField("place", place)

	params := url.Values{}
	params.Set("q", place)
	params.Set("format", "json")
	reqURL := c.searchURL + "?" + params.Encode()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, reqURL); err != nil {
			if ctx.Err() != nil {
				return model.GeoResult{}, ctx.Err()
			}
			log.WithError(err).Warn("Rate limiter rejected geocode request")
			return model.GeoResult{}, nil
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to create geocode request")
		return model.GeoResult{}, nil
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return model.GeoResult{}, ctx.Err()
		}
		log.WithError(err).Warn("Geocode request failed")
		return model.GeoResult{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Warn("Geocode lookup returned non-200 status")
		return model.GeoResult{}, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return model.GeoResult{}, ctx.Err()
		}
		log.WithError(err).Warn("Failed to read geocode response")
		return model.GeoResult{}, nil
	}

	var hits []searchHit
	if err := json.Unmarshal(body, &hits); err != nil {
		log.WithError(err).Warn("Failed to decode geocode response")
		return model.GeoResult{}, nil
	}
	if len(hits) == 0 {
		log.Debug("No geocode results")
		return model.GeoResult{}, nil
	}

	return parseHit(hits[0], log), nil
}

// parseHit converts the string coordinates of a hit. A coordinate that does not
// parse is logged and left absent.
func parseHit(hit searchHit, log *logrus.Entry) model.GeoResult {
	var result model.GeoResult
	if lat, err := parseCoordinate(hit.Lat); err != nil {
		log.WithError(err).WithField("latitude", hit.Lat).Warn("Invalid latitude in geocode response")
	} else {
		result.Latitude = &lat
	}
	if lon, err := parseCoordinate(hit.Lon); err != nil {
		log.WithError(err).WithField("longitude", hit.Lon).Warn("Invalid longitude in geocode response")
	} else {
		result.Longitude = &lon
	}
	return result
}

func parseCoordinate(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse coordinate: %w", err)
	}
	return v, nil
}
