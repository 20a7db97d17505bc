package metadata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mixtape/internal/config"
	"mixtape/pkg/models"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// Extractor builds local tracks from audio files on disk
type Extractor struct {
	formats config.MetadataConfig
	logger  *logrus.Logger
}

// NewExtractor creates a new metadata extractor for the configured
// formats, file extensions including the dot, e.g. ".mp3"
func NewExtractor(cfg config.MetadataConfig, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return &Extractor{
		formats: cfg,
		logger:  logger,
	}
}

// ExtractTrack reads tags and duration from an audio file. Missing tags
// fall back to the file name and UnknownArtist; an unreadable duration is 0.
func (e *Extractor) ExtractTrack(filePath string) (*models.BaseTrack, error) {
	startTime := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Error("Failed to open audio file")
		return nil, err
	}
	defer file.Close()

	duration, err := e.calculateDuration(filePath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Warn("Failed to calculate duration, setting to 0")
		duration = 0
	}

	name := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Warn("Failed to extract metadata, using filename")

		return &models.BaseTrack{
			Title:    name,
			Artist:   UnknownArtist,
			Album:    UnknownAlbum,
			Duration: duration,
			FilePath: filePath,
		}, nil
	}

	track := &models.BaseTrack{
		Title:    firstNonEmpty(metadata.Title(), name),
		Artist:   firstNonEmpty(metadata.Artist(), metadata.AlbumArtist(), UnknownArtist),
		Album:    firstNonEmpty(metadata.Album(), UnknownAlbum),
		Duration: duration,
		FilePath: filePath,
	}

	e.logger.WithFields(logrus.Fields{
		"filePath":       filePath,
		"title":          track.Title,
		"artist":         track.Artist,
		"album":          track.Album,
		"duration":       duration,
		"processingTime": time.Since(startTime),
	}).Debug("Successfully extracted metadata")

	return track, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// calculateDuration calculates the duration of an audio file in seconds
func (e *Extractor) calculateDuration(filePath string) (int, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".mp3":
		return e.durationMP3(filePath)
	case ".flac":
		return durationFLAC(filePath)
	case ".wav":
		return durationWAV(filePath)
	case ".m4a":
		return durationM4A(filePath)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// durationMP3 sums decoded frame durations. When not a single frame
// decodes it estimates from the file size at 192 kbps.
func (e *Extractor) durationMP3(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				e.logger.WithField("filePath", path).Debug("No mp3 frames decoded, estimating duration")
				return estimateFromFileSize(f, 192000)
			}
			break
		}
		total += fr.Duration()
		frames++
	}
	return int(total.Seconds()), nil
}

// durationFLAC reads the STREAMINFO block
func durationFLAC(path string) (int, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		secs := float64(si.NSamples) / float64(si.SampleRate)
		return int(secs + 0.5), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// durationWAV uses the header for the format and the file size for the
// sample count
func durationWAV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	pcmBytes := st.Size() - 44
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerSampleFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerSampleFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	secs := float64(pcmBytes/bytesPerSampleFrame) / float64(dec.SampleRate)
	return int(secs + 0.5), nil
}

// durationM4A reads timescale and duration from the moov/mvhd atom
func durationM4A(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	head := make([]byte, 8)
	for {
		if _, err := io.ReadFull(f, head); err != nil {
			return 0, err
		}
		size := binary.BigEndian.Uint32(head[0:4])
		if size < 8 {
			return 0, fmt.Errorf("invalid atom size")
		}
		if string(head[4:8]) == "moov" {
			return scanMVHD(f, int64(size)-8)
		}
		if _, err := f.Seek(int64(size)-8, io.SeekCurrent); err != nil {
			return 0, err
		}
	}
}

func scanMVHD(f io.ReadSeeker, limit int64) (int, error) {
	head := make([]byte, 8)
	for read := int64(0); read < limit; {
		if _, err := io.ReadFull(f, head); err != nil {
			return 0, err
		}
		size := binary.BigEndian.Uint32(head[0:4])
		if string(head[4:8]) != "mvhd" {
			if size < 8 {
				return 0, fmt.Errorf("invalid sub-atom size")
			}
			if _, err := f.Seek(int64(size)-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			read += int64(size)
			continue
		}

		version := make([]byte, 1)
		if _, err := io.ReadFull(f, version); err != nil {
			return 0, err
		}
		// flags, then creation and modification times
		skip := int64(3 + 4 + 4)
		if version[0] == 1 {
			skip = 3 + 8 + 8
		}
		if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
			return 0, err
		}

		buf := make([]byte, 4+8)
		n := 4 + 4
		if version[0] == 1 {
			n = 4 + 8
		}
		if _, err := io.ReadFull(f, buf[:n]); err != nil {
			return 0, err
		}
		timescale := binary.BigEndian.Uint32(buf[0:4])
		var units uint64
		if version[0] == 1 {
			units = binary.BigEndian.Uint64(buf[4:12])
		} else {
			units = uint64(binary.BigEndian.Uint32(buf[4:8]))
		}
		if timescale == 0 {
			return 0, fmt.Errorf("invalid timescale")
		}
		return int(float64(units)/float64(timescale) + 0.5), nil
	}
	return 0, fmt.Errorf("mvhd atom not found")
}

func estimateFromFileSize(f *os.File, bitrate int) (int, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return int((st.Size() * 8) / int64(bitrate)), nil
}

// IsAudioFile checks if a file is a supported audio format
func (e *Extractor) IsAudioFile(filePath string) bool {
	return e.formats.IsFormatSupported(filepath.Ext(filePath))
}
