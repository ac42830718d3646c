package model

// Preview is a street-level imagery handle for a coordinate. SourceURL is the upstream
// image address and may carry provider credentials, so it never leaves the service;
// ImageURL is only set once the image is hosted somewhere safe to hand out.
type Preview struct {
	PanoID     string  `json:"pano_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	ImageURL   string  `json:"image_url,omitempty"`
	SourceURL  string  `json:"-"`
	CapturedAt string  `json:"captured_at,omitempty"`
}

type PreviewState string

const (
	PreviewIdle        PreviewState = "idle"
	PreviewLoading     PreviewState = "loading"
	PreviewAvailable   PreviewState = "available"
	PreviewUnavailable PreviewState = "unavailable"
)

// PreviewStatus is what the detail view renders for the look-around panel.
type PreviewStatus struct {
	State   PreviewState `json:"state"`
	Preview *Preview     `json:"preview,omitempty"`
}
