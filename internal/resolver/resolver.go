package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"blackdiamond-music/internal/track"

	"github.com/kkdai/youtube/v2"
	"github.com/raitonoberu/ytsearch"
	"go.uber.org/zap"
)

type ErrorReason string

const (
	ReasonNotFound     ErrorReason = "not_found"
	ReasonNoResults    ErrorReason = "no_results"
	ReasonNetworkError ErrorReason = "network_error"
	ReasonUnsupported  ErrorReason = "unsupported"
)

// ResolutionError carries the failing query alongside the classified reason so
// callers can build a user-facing message without string-matching wrapped errors.
type ResolutionError struct {
	Reason ErrorReason
	Query  string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %q: %s: %v", e.Query, e.Reason, e.Err)
	}
	return fmt.Sprintf("resolve %q: %s", e.Query, e.Reason)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

var directLinkPattern = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.?be)/.+$`)

// IsDirectLink reports whether the input should be treated as a media URL
// rather than a free-text search query.
func IsDirectLink(input string) bool {
	return directLinkPattern.MatchString(strings.TrimSpace(input))
}

// StreamHandle is a short-lived direct audio URL. Handles expire server-side,
// so one is fetched fresh immediately before each playback attempt.
type StreamHandle struct {
	URL      string
	MimeType string
}

type Resolver struct {
	client youtube.Client
	logger *zap.Logger
}

func New(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve turns user input into a playable track, treating URLs as direct
// lookups and anything else as a search query.
func (r *Resolver) Resolve(ctx context.Context, input string) (track.Track, error) {
	if IsDirectLink(input) {
		return r.ResolveDirect(ctx, input)
	}
	return r.ResolveSearch(ctx, input)
}

func (r *Resolver) ResolveDirect(ctx context.Context, url string) (track.Track, error) {
	video, err := r.client.GetVideoContext(ctx, url)
	if err != nil {
		return track.Track{}, &ResolutionError{Reason: classify(err), Query: url, Err: err}
	}

	thumbnail := ""
	if len(video.Thumbnails) > 0 {
		thumbnail = video.Thumbnails[0].URL
	}

	return track.Track{
		Title:           video.Title,
		SourceURL:       "https://www.youtube.com/watch?v=" + video.ID,
		ThumbnailURL:    thumbnail,
		DurationSeconds: int(video.Duration.Seconds()),
		Uploader:        video.Author,
		Source:          track.SourceRemoteMedia,
	}, nil
}

func (r *Resolver) ResolveSearch(ctx context.Context, query string) (track.Track, error) {
	search := ytsearch.VideoSearch(query)
	results, err := search.Next()
	if err != nil {
		return track.Track{}, &ResolutionError{Reason: ReasonNetworkError, Query: query, Err: err}
	}
	if len(results.Videos) == 0 {
		return track.Track{}, &ResolutionError{Reason: ReasonNoResults, Query: query}
	}

	best := results.Videos[0]
	r.logger.Debug("search resolved",
		zap.String("query", query),
		zap.String("video_id", best.ID),
		zap.String("title", best.Title))

	return r.ResolveDirect(ctx, "https://www.youtube.com/watch?v="+best.ID)
}

// FreshStreamHandle fetches a new direct audio URL for the track. Handles from
// earlier resolutions must not be reused because they expire.
func (r *Resolver) FreshStreamHandle(ctx context.Context, sourceURL string) (StreamHandle, error) {
	video, err := r.client.GetVideoContext(ctx, sourceURL)
	if err != nil {
		return StreamHandle{}, &ResolutionError{Reason: classify(err), Query: sourceURL, Err: err}
	}

	formats := video.Formats.Type("audio")
	if len(formats) == 0 {
		formats = video.Formats.WithAudioChannels()
	}
	if len(formats) == 0 {
		return StreamHandle{}, &ResolutionError{Reason: ReasonUnsupported, Query: sourceURL}
	}
	formats.Sort()

	url, err := r.client.GetStreamURLContext(ctx, video, &formats[0])
	if err != nil {
		return StreamHandle{}, &ResolutionError{Reason: ReasonNetworkError, Query: sourceURL, Err: err}
	}

	return StreamHandle{URL: url, MimeType: formats[0].MimeType}, nil
}

func classify(err error) ErrorReason {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "not found") || strings.Contains(msg, "unavailable") || strings.Contains(msg, "invalid"):
		return ReasonNotFound
	case strings.Contains(msg, "private") || strings.Contains(msg, "age") || strings.Contains(msg, "login"):
		return ReasonUnsupported
	default:
		return ReasonNetworkError
	}
}
