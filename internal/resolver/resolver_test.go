package resolver

import (
	"errors"
	"testing"
)

func TestIsDirectLink(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"http://youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"  https://youtu.be/abc123  ", true},
		{"never gonna give you up", false},
		{"lofi hip hop radio", false},
		{"https://example.com/watch?v=abc", false},
		{"youtube.com/", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsDirectLink(tc.input); got != tc.want {
			t.Fatalf("IsDirectLink(%q): expected %v, got %v", tc.input, tc.want, got)
		}
	}
}

func TestResolutionErrorMessage(t *testing.T) {
	inner := errors.New("connection refused")
	err := &ResolutionError{Reason: ReasonNetworkError, Query: "some song", Err: inner}

	if !errors.Is(err, inner) {
		t.Fatal("expected wrapped error to match with errors.Is")
	}
	if err.Error() == "" {
		t.Fatal("expected non-empty message")
	}

	bare := &ResolutionError{Reason: ReasonNoResults, Query: "xyzzy"}
	if bare.Error() == "" {
		t.Fatal("expected non-empty message without inner error")
	}
	if errors.Unwrap(bare) != nil {
		t.Fatalf("expected nil unwrap, got %v", errors.Unwrap(bare))
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorReason
	}{
		{errors.New("video not found"), ReasonNotFound},
		{errors.New("this video is unavailable"), ReasonNotFound},
		{errors.New("invalid characters in video id"), ReasonNotFound},
		{errors.New("login required to watch"), ReasonUnsupported},
		{errors.New("dial tcp: i/o timeout"), ReasonNetworkError},
	}
	for _, tc := range cases {
		if got := classify(tc.err); got != tc.want {
			t.Fatalf("classify(%v): expected %s, got %s", tc.err, tc.want, got)
		}
	}
}
