package models

import "fmt"

// TrackType tags the variant a serialized track belongs to
type TrackType string

const (
	TrackTypeBase    TrackType = "BaseTrack"
	TrackTypeYoutube TrackType = "YoutubeTrack"
	TrackTypeVimeo   TrackType = "VimeoTrack"
)

// Track is a playable media item. Implementations are held by pointer so
// that playlists can tell two tracks with equal fields apart.
type Track interface {
	GetTitle() string
	GetArtist() string
	ToRecord() TrackRecord
}

// TrackRecord is the serialized form shared by every track variant
type TrackRecord struct {
	TrackType    TrackType `json:"trackType"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	Album        string    `json:"album,omitempty"`
	Duration     int       `json:"duration,omitempty"` // in seconds
	FilePath     string    `json:"filePath,omitempty"`
	VideoID      string    `json:"videoId,omitempty"`
	ChannelTitle string    `json:"channelTitle,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	OwnerName    string    `json:"ownerName,omitempty"`
}

// BaseTrack is a plain track, usually backed by a local file
type BaseTrack struct {
	Title    string
	Artist   string
	Album    string
	Duration int // in seconds
	FilePath string
}

// NewBaseTrack reconstructs a BaseTrack from its record
func NewBaseTrack(rec TrackRecord) *BaseTrack {
	return &BaseTrack{
		Title:    rec.Title,
		Artist:   rec.Artist,
		Album:    rec.Album,
		Duration: rec.Duration,
		FilePath: rec.FilePath,
	}
}

func (t *BaseTrack) GetTitle() string  { return t.Title }
func (t *BaseTrack) GetArtist() string { return t.Artist }

// ToRecord returns the serialized form of the track
func (t *BaseTrack) ToRecord() TrackRecord {
	return TrackRecord{
		TrackType: TrackTypeBase,
		Title:     t.Title,
		Artist:    t.Artist,
		Album:     t.Album,
		Duration:  t.Duration,
		FilePath:  t.FilePath,
	}
}

// YoutubeTrack is a track played from a YouTube video
type YoutubeTrack struct {
	BaseTrack
	VideoID      string
	ChannelTitle string
	ThumbnailURL string
}

// NewYoutubeTrack reconstructs a YoutubeTrack from its record
func NewYoutubeTrack(rec TrackRecord) *YoutubeTrack {
	return &YoutubeTrack{
		BaseTrack:    *NewBaseTrack(rec),
		VideoID:      rec.VideoID,
		ChannelTitle: rec.ChannelTitle,
		ThumbnailURL: rec.ThumbnailURL,
	}
}

// URL returns the watch page of the video
func (t *YoutubeTrack) URL() string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", t.VideoID)
}

func (t *YoutubeTrack) ToRecord() TrackRecord {
	rec := t.BaseTrack.ToRecord()
	rec.TrackType = TrackTypeYoutube
	rec.VideoID = t.VideoID
	rec.ChannelTitle = t.ChannelTitle
	rec.ThumbnailURL = t.ThumbnailURL
	return rec
}

// VimeoTrack is a track played from a Vimeo video
type VimeoTrack struct {
	BaseTrack
	VideoID   string
	OwnerName string
}

// NewVimeoTrack reconstructs a VimeoTrack from its record
func NewVimeoTrack(rec TrackRecord) *VimeoTrack {
	return &VimeoTrack{
		BaseTrack: *NewBaseTrack(rec),
		VideoID:   rec.VideoID,
		OwnerName: rec.OwnerName,
	}
}

// URL returns the page of the video
func (t *VimeoTrack) URL() string {
	return fmt.Sprintf("https://vimeo.com/%s", t.VideoID)
}

func (t *VimeoTrack) ToRecord() TrackRecord {
	rec := t.BaseTrack.ToRecord()
	rec.TrackType = TrackTypeVimeo
	rec.VideoID = t.VideoID
	rec.OwnerName = t.OwnerName
	return rec
}
