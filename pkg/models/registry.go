package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownTrackType is returned for records whose trackType has no registered constructor
var ErrUnknownTrackType = errors.New("unknown track type")

// TrackConstructor rebuilds a live track from its serialized record
type TrackConstructor func(rec TrackRecord) Track

// Supporting a new variant means adding an entry here.
var trackConstructors = map[TrackType]TrackConstructor{
	TrackTypeBase:    func(rec TrackRecord) Track { return NewBaseTrack(rec) },
	TrackTypeYoutube: func(rec TrackRecord) Track { return NewYoutubeTrack(rec) },
	TrackTypeVimeo:   func(rec TrackRecord) Track { return NewVimeoTrack(rec) },
}

// LookupTrackConstructor returns the constructor registered for trackType
func LookupTrackConstructor(trackType TrackType) (TrackConstructor, bool) {
	ctor, ok := trackConstructors[trackType]
	return ctor, ok
}

// NewTrackFromRecord reconstructs the variant declared by rec.TrackType
func NewTrackFromRecord(rec TrackRecord) (Track, error) {
	ctor, ok := LookupTrackConstructor(rec.TrackType)
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownTrackType, rec.TrackType, knownTrackTypeList())
	}
	return ctor(rec), nil
}

// KnownTrackTypes lists every registered variant tag in sorted order
func KnownTrackTypes() []TrackType {
	types := make([]TrackType, 0, len(trackConstructors))
	for t := range trackConstructors {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func knownTrackTypeList() string {
	types := KnownTrackTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
