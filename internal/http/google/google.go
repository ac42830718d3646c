package googlemaps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bwise1/lookaround/internal/model"
)

const (
	defaultBaseURL = "https://maps.googleapis.com"
	// Text Search rejects larger radii.
	maxSearchRadiusMeters = 50000
)

// GoogleMapsClient handles communication with Google Maps APIs
type GoogleMapsClient struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// NewGoogleMapsClient creates a new client instance
func NewGoogleMapsClient(apiKey string) *GoogleMapsClient {
	return &GoogleMapsClient{
		APIKey:  apiKey,
		BaseURL: defaultBaseURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Text Search Structures ---

// TextSearchResponse represents the top-level response for a Text Search request
type TextSearchResponse struct {
	HTMLAttributions []string      `json:"html_attributions"`
	Results          []PlaceResult `json:"results"`
	Status           string        `json:"status"` // "OK", "ZERO_RESULTS", "OVER_QUERY_LIMIT", "REQUEST_DENIED", "INVALID_REQUEST"
	ErrorMessage     string        `json:"error_message,omitempty"`
	NextPageToken    string        `json:"next_page_token,omitempty"`
}

type PlaceResult struct {
	FormattedAddress string   `json:"formatted_address"`
	Geometry         Geometry `json:"geometry"`
	Name             string   `json:"name"`
	PlaceID          string   `json:"place_id"`
	Types            []string `json:"types"`
}

// Geometry contains location information
type Geometry struct {
	Location LatLng `json:"location"`
	Viewport Bounds `json:"viewport"`
}

// LatLng represents latitude and longitude
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds represents a viewport bounding box
type Bounds struct {
	NorthEast LatLng `json:"northeast"`
	SouthWest LatLng `json:"southwest"`
}

// --- Street View Metadata Structures ---

// StreetViewMetadata is the response of the Street View Image Metadata API.
type StreetViewMetadata struct {
	Copyright    string `json:"copyright"`
	Date         string `json:"date"` // "YYYY-MM"
	Location     LatLng `json:"location"`
	PanoID       string `json:"pano_id"`
	Status       string `json:"status"` // "OK", "ZERO_RESULTS", "NOT_FOUND", ...
	ErrorMessage string `json:"error_message,omitempty"`
}

func (gc *GoogleMapsClient) getJSON(ctx context.Context, path string, params url.Values, v interface{}) error {
	if gc.APIKey == "" {
		return fmt.Errorf("google maps API key is not set")
	}
	params.Set("key", gc.APIKey)
	fullURL := fmt.Sprintf("%s%s?%s", gc.BaseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := gc.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("google maps error: status code %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// TextSearch queries the Places Text Search endpoint.
func (gc *GoogleMapsClient) TextSearch(ctx context.Context, query string, params url.Values) (*TextSearchResponse, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("query", query)

	var out TextSearchResponse
	if err := gc.getJSON(ctx, "/maps/api/place/textsearch/json", params, &out); err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}

	switch out.Status {
	case "OK", "ZERO_RESULTS":
		return &out, nil
	default:
		return nil, fmt.Errorf("google maps API error: %s %s", out.Status, out.ErrorMessage)
	}
}

// Search runs a Text Search located at the bias center with a radius that covers the
// bias region.
func (gc *GoogleMapsClient) Search(ctx context.Context, query string, bias *model.Region) ([]model.Place, error) {
	params := url.Values{}
	if bias != nil {
		radius := int(bias.RadiusMeters())
		if radius > maxSearchRadiusMeters {
			radius = maxSearchRadiusMeters
		}
		if radius < 1 {
			radius = 1
		}
		params.Set("location", latLngParam(bias.Center))
		params.Set("radius", strconv.Itoa(radius))
	}

	resp, err := gc.TextSearch(ctx, query, params)
	if err != nil {
		return nil, err
	}

	places := make([]model.Place, 0, len(resp.Results))
	for _, r := range resp.Results {
		places = append(places, model.Place{
			Name:    r.Name,
			Address: r.FormattedAddress,
			Coord:   model.Coordinate{Latitude: r.Geometry.Location.Lat, Longitude: r.Geometry.Location.Lng},
		})
	}
	return places, nil
}

// StreetViewMetadata looks up the panorama closest to the coordinate. A missing panorama is
// reported through Status, not as an error.
func (gc *GoogleMapsClient) StreetViewMetadata(ctx context.Context, c model.Coordinate) (*StreetViewMetadata, error) {
	params := url.Values{}
	params.Set("location", latLngParam(c))
	params.Set("source", "outdoor")

	var out StreetViewMetadata
	if err := gc.getJSON(ctx, "/maps/api/streetview/metadata", params, &out); err != nil {
		return nil, fmt.Errorf("street view metadata: %w", err)
	}
	return &out, nil
}

// StreetViewImageURL builds the static image URL for a panorama.
func (gc *GoogleMapsClient) StreetViewImageURL(panoID string, width, height int) string {
	params := url.Values{}
	params.Set("pano", panoID)
	params.Set("size", fmt.Sprintf("%dx%d", width, height))
	params.Set("key", gc.APIKey)
	return fmt.Sprintf("%s/maps/api/streetview?%s", gc.BaseURL, params.Encode())
}

func latLngParam(c model.Coordinate) string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}
