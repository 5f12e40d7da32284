package track

// SourceRemoteMedia is the only supported track source today.
const SourceRemoteMedia = "remote_media"

// Track is a resolved, playable media item with display metadata.
// RequestedBy is set once at enqueue time; everything else is fixed at resolution.
type Track struct {
	Title           string `json:"title"`
	SourceURL       string `json:"source_url"`
	ThumbnailURL    string `json:"thumbnail_url"`
	DurationSeconds int    `json:"duration_seconds"`
	Uploader        string `json:"uploader"`
	RequestedBy     string `json:"requested_by"`
	Source          string `json:"source"`
}
