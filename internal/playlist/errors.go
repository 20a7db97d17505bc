package playlist

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateTrack = errors.New("a track with the same artist and title already exists")
	ErrTrackNotFound  = errors.New("track not found in playlist")
	ErrNilTrack       = errors.New("track is nil")
)

// DuplicateTrackError reports the (artist, title) pair that was rejected
type DuplicateTrackError struct {
	Artist string
	Title  string
}

func (e *DuplicateTrackError) Error() string {
	return fmt.Sprintf("%s: %q by %q", ErrDuplicateTrack, e.Title, e.Artist)
}

func (e *DuplicateTrackError) Unwrap() error {
	return ErrDuplicateTrack
}

// BatchError collects the failures of a batch add. Tracks that were added
// before or after a failure stay in the playlist.
type BatchError struct {
	Attempted int
	Errors    []error
}

func (e *BatchError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("1 of %d tracks not added: %s", e.Attempted, e.Errors[0])
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d of %d tracks not added:", len(e.Errors), e.Attempted))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, err))
	}
	return sb.String()
}

func (e *BatchError) Unwrap() []error {
	return e.Errors
}
