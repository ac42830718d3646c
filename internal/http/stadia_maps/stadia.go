package stadiamaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwise1/lookaround/internal/model"
	"github.com/google/go-querystring/query"
	"github.com/pkg/errors"
)

const (
	defaultStadiaBaseURL = "https://api.stadiamaps.com"
	defaultResultSize    = 10
)

// Client handles communication with the Stadia Maps geocoding API.
type Client struct {
	BaseURL    *url.URL
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Stadia Maps API client with default timeout.
func NewClient(apiKey string) *Client {
	baseURL, _ := url.Parse(defaultStadiaBaseURL)
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
	}
}

// GeocodeQuery represents parameters for geocoding requests.
type GeocodeQuery struct {
	Text           string   `url:"text,omitempty"`
	PointLat       *float64 `url:"point.lat,omitempty"` // reverse only
	PointLon       *float64 `url:"point.lon,omitempty"` // reverse only
	Size           *int     `url:"size,omitempty"`
	Layers         []string `url:"layers,omitempty,comma"`
	FocusPointLat  *float64 `url:"focus.point.lat,omitempty"`
	FocusPointLon  *float64 `url:"focus.point.lon,omitempty"`
	BoundaryMinLat *float64 `url:"boundary.rect.min_lat,omitempty"`
	BoundaryMinLon *float64 `url:"boundary.rect.min_lon,omitempty"`
	BoundaryMaxLat *float64 `url:"boundary.rect.max_lat,omitempty"`
	BoundaryMaxLon *float64 `url:"boundary.rect.max_lon,omitempty"`
}

// Bias narrows the query to a map region: results are ranked around its center and
// restricted to its bounds. A region straddling the antimeridian keeps only the focus
// point, since boundary.rect cannot wrap.
func (q *GeocodeQuery) Bias(r model.Region) {
	b := r.Bounds()
	q.FocusPointLat = &r.Center.Latitude
	q.FocusPointLon = &r.Center.Longitude
	if b.CrossesAntimeridian() {
		q.BoundaryMinLat, q.BoundaryMinLon, q.BoundaryMaxLat, q.BoundaryMaxLon = nil, nil, nil, nil
		return
	}
	q.BoundaryMinLat = &b.MinLatitude
	q.BoundaryMinLon = &b.MinLongitude
	q.BoundaryMaxLat = &b.MaxLatitude
	q.BoundaryMaxLon = &b.MaxLongitude
}

// FeatureProperties are the Pelias properties the service reads.
type FeatureProperties struct {
	Gid         string  `json:"gid"`
	Layer       string  `json:"layer"`
	Name        string  `json:"name"`
	Label       string  `json:"label"`
	HouseNumber string  `json:"housenumber,omitempty"`
	Street      string  `json:"street,omitempty"`
	PostalCode  string  `json:"postalcode,omitempty"`
	Locality    string  `json:"locality,omitempty"`
	Region      string  `json:"region,omitempty"`
	Country     string  `json:"country,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// GeoJSONFeatureCollection is the response structure for geocoding APIs.
type GeoJSONFeatureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		Type     string `json:"type"`
		Geometry *struct {
			Type        string    `json:"type"`
			Coordinates []float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
		Properties FeatureProperties `json:"properties"`
	} `json:"features"`
}

// Places converts the features that carry a point geometry.
func (fc *GeoJSONFeatureCollection) Places() []model.Place {
	places := make([]model.Place, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.Geometry == nil || len(f.Geometry.Coordinates) < 2 {
			continue
		}
		places = append(places, model.Place{
			Name:    f.Properties.Name,
			Address: f.Properties.address(),
			Coord: model.Coordinate{
				Latitude:  f.Geometry.Coordinates[1],
				Longitude: f.Geometry.Coordinates[0],
			},
		})
	}
	return places
}

func (p FeatureProperties) address() string {
	if p.Label != "" {
		return p.Label
	}
	street := p.Street
	if p.HouseNumber != "" && street != "" {
		street = p.HouseNumber + " " + street
	}
	parts := make([]string, 0, 4)
	for _, s := range []string{street, p.Locality, p.Region, p.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// buildURL constructs the API URL with query parameters.
func (c *Client) buildURL(endpoint string, queryParams interface{}) (string, error) {
	rel, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Wrap(err, "parse endpoint")
	}
	u := c.BaseURL.ResolveReference(rel)

	q := u.Query()
	q.Set("api_key", c.APIKey)

	if queryParams != nil {
		v, err := query.Values(queryParams)
		if err != nil {
			return "", errors.Wrap(err, "encode query parameters")
		}
		for k, vals := range v {
			for _, val := range vals {
				q.Add(k, val)
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Geocode performs forward geocoding.
// Endpoint: /geocoding/v1/search
func (c *Client) Geocode(ctx context.Context, text string, params *GeocodeQuery) (*GeoJSONFeatureCollection, error) {
	if params == nil {
		params = &GeocodeQuery{}
	}
	params.Text = text

	reqURL, err := c.buildURL("/geocoding/v1/search", params)
	if err != nil {
		return nil, errors.Wrap(err, "build search URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create search request")
	}

	var result GeoJSONFeatureCollection
	if err := c.do(req, &result); err != nil {
		return nil, errors.Wrap(err, "execute search request")
	}
	return &result, nil
}

// Search runs a free-text search, biased to the region when one is given.
func (c *Client) Search(ctx context.Context, text string, bias *model.Region) ([]model.Place, error) {
	size := defaultResultSize
	params := &GeocodeQuery{Size: &size}
	if bias != nil {
		params.Bias(*bias)
	}

	fc, err := c.Geocode(ctx, text, params)
	if err != nil {
		return nil, err
	}
	return fc.Places(), nil
}

// ReverseGeocode performs reverse geocoding.
// Endpoint: /geocoding/v1/reverse
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64, params *GeocodeQuery) (*GeoJSONFeatureCollection, error) {
	if params == nil {
		params = &GeocodeQuery{}
	}
	params.PointLat = &lat
	params.PointLon = &lon

	reqURL, err := c.buildURL("/geocoding/v1/reverse", params)
	if err != nil {
		return nil, errors.Wrap(err, "build reverse geocode URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create reverse geocode request")
	}

	var result GeoJSONFeatureCollection
	if err := c.do(req, &result); err != nil {
		return nil, errors.Wrap(err, "execute reverse geocode request")
	}
	return &result, nil
}

// Reverse returns the closest place to the coordinate, or nil when there is none.
func (c *Client) Reverse(ctx context.Context, coord model.Coordinate) (*model.Place, error) {
	size := 1
	fc, err := c.ReverseGeocode(ctx, coord.Latitude, coord.Longitude, &GeocodeQuery{Size: &size})
	if err != nil {
		return nil, err
	}
	places := fc.Places()
	if len(places) == 0 {
		return nil, nil
	}
	return &places[0], nil
}

// do executes HTTP requests and decodes JSON responses.
func (c *Client) do(req *http.Request, v interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "execute HTTP request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return errors.Wrap(err, "decode response")
		}
	}
	return nil
}
