package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bwise1/lookaround/internal/model"
)

const defaultBaseURL = "https://api.mapbox.com"

// MapboxClient handles communication with the Mapbox geocoding API.
type MapboxClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	Limit   int
}

// NewMapboxClient creates a new Mapbox client instance
func NewMapboxClient(apiKey string) *MapboxClient {
	return &MapboxClient{
		APIKey:  apiKey,
		BaseURL: defaultBaseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Limit:   10,
	}
}

// GeocodingResponse is the Geocoding v5 feature collection.
type GeocodingResponse struct {
	Type     string    `json:"type"`
	Query    []any     `json:"query"`
	Features []Feature `json:"features"`
}

type Feature struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	PlaceType []string  `json:"place_type"`
	Relevance float64   `json:"relevance"`
	Text      string    `json:"text"`       // short name, e.g. "Louvre Museum"
	PlaceName string    `json:"place_name"` // full label including the name
	Center    []float64 `json:"center"`     // [longitude, latitude]
}

func (f Feature) place() (model.Place, bool) {
	if len(f.Center) < 2 {
		return model.Place{}, false
	}
	address := f.PlaceName
	// place_name repeats the name as its first component
	if rest, ok := strings.CutPrefix(address, f.Text+", "); ok {
		address = rest
	}
	return model.Place{
		Name:    f.Text,
		Address: address,
		Coord:   model.Coordinate{Latitude: f.Center[1], Longitude: f.Center[0]},
	}, true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Geocode runs a forward or reverse geocoding request. searchText is either free text or
// "lon,lat".
func (mc *MapboxClient) Geocode(ctx context.Context, searchText string, params url.Values) (*GeocodingResponse, error) {
	if mc.APIKey == "" {
		return nil, fmt.Errorf("mapbox API key is not set")
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", mc.APIKey)

	fullURL := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s",
		mc.BaseURL, url.PathEscape(searchText), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Mapbox Geocoding request: %w", err)
	}

	resp, err := mc.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute Mapbox Geocoding request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read Mapbox Geocoding response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mapbox geocoding error: status code %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var geoResp GeocodingResponse
	if err := json.Unmarshal(bodyBytes, &geoResp); err != nil {
		return nil, fmt.Errorf("failed to decode Mapbox Geocoding response: %w", err)
	}
	return &geoResp, nil
}

// Search runs a forward geocoding request with proximity and bbox taken from the bias.
func (mc *MapboxClient) Search(ctx context.Context, query string, bias *model.Region) ([]model.Place, error) {
	// the endpoint has no empty-query form
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(mc.Limit))
	if bias != nil {
		params.Set("proximity", formatFloat(bias.Center.Longitude)+","+formatFloat(bias.Center.Latitude))
		// bbox cannot wrap around the antimeridian
		if b := bias.Bounds(); !b.CrossesAntimeridian() {
			params.Set("bbox", strings.Join([]string{
				formatFloat(b.MinLongitude),
				formatFloat(b.MinLatitude),
				formatFloat(b.MaxLongitude),
				formatFloat(b.MaxLatitude),
			}, ","))
		}
	}

	resp, err := mc.Geocode(ctx, query, params)
	if err != nil {
		return nil, err
	}

	places := make([]model.Place, 0, len(resp.Features))
	for _, f := range resp.Features {
		if p, ok := f.place(); ok {
			places = append(places, p)
		}
	}
	return places, nil
}

// Reverse returns the most relevant feature at the coordinate, or nil.
func (mc *MapboxClient) Reverse(ctx context.Context, coord model.Coordinate) (*model.Place, error) {
	resp, err := mc.Geocode(ctx, formatFloat(coord.Longitude)+","+formatFloat(coord.Latitude), nil)
	if err != nil {
		return nil, err
	}
	for _, f := range resp.Features {
		if p, ok := f.place(); ok {
			return &p, nil
		}
	}
	return nil, nil
}
