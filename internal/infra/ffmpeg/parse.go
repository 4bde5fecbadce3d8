package ffmpeg

import (
	"bufio"
	"bytes"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fiapx/fiapx-detection-service/internal/domain/entity"
)

const (
	sectionFormat = "FORMAT"
	sectionStream = "STREAM"

	videoCodecType = "video"
	audioCodecType = "audio"
)

var (
	startDatePattern    = regexp.MustCompile(`date\s+:\s+([0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}:[0-9]{2}\.[0-9]{6}Z)`)
	creationTimePattern = regexp.MustCompile(`creation_time\s+:\s+([0-9]{4}-[0-9]{2}-[0-9]{2}T[0-9]{2}:[0-9]{2}:[0-9]{2}\.[0-9]{6}Z)`)
)

// parseReport reads ffprobe's default writer output, a list of
// [SECTION] ... [/SECTION] blocks of key=value lines.
func parseReport(out []byte) *entity.MediaMetadata {
	meta := &entity.MediaMetadata{}

	var (
		header  string
		nested  string
		section map[string]string
	)

	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), len(out)+1)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case strings.HasPrefix(line, "[/") && strings.HasSuffix(line, "]"):
			name := strings.TrimSuffix(strings.TrimPrefix(line, "[/"), "]")
			if nested != "" {
				if name == nested {
					nested = ""
				}
				continue
			}
			if section != nil && name == header {
				applySection(meta, header, section)
				header, section = "", nil
			}
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			name := strings.Trim(line, "[]")
			if section != nil {
				// side data and similar blocks nest inside a stream
				if nested == "" {
					nested = name
				}
				continue
			}
			header = name
			section = make(map[string]string)
		case nested != "":
		case section != nil:
			key, value, found := strings.Cut(line, "=")
			if found {
				section[key] = value
			}
		}
	}

	return meta
}

func applySection(meta *entity.MediaMetadata, header string, s map[string]string) {
	switch header {
	case sectionFormat:
		meta.FormatID = s["format_name"]
		meta.FormatName = s["format_long_name"]
		meta.Duration, _ = strconv.ParseFloat(s["duration"], 64)
		meta.BitRate, _ = strconv.ParseInt(s["bit_rate"], 10, 64)
		meta.Encoder = s["TAG:encoder"]
	case sectionStream:
		switch s["codec_type"] {
		case audioCodecType:
			if meta.Audio == nil {
				meta.Audio = parseAudio(s)
			}
		case videoCodecType:
			if meta.Video == nil {
				meta.Video = parseVideo(s)
			}
		}
	}
}

func parseAudio(s map[string]string) *entity.AudioStream {
	a := &entity.AudioStream{
		CodecID:       s["codec_name"],
		CodecName:     s["codec_long_name"],
		SampleRate:    atoi(s["sample_rate"]),
		Channels:      atoi(s["channels"]),
		ChannelLayout: s["channel_layout"],
		Encoder:       s["TAG:encoder"],
	}
	if bits := s["bits_per_sample"]; bits != "0" {
		a.BitsPerSample = atoi(bits)
	}
	return a
}

func parseVideo(s map[string]string) *entity.VideoStream {
	v := &entity.VideoStream{
		CodecID:      s["codec_name"],
		CodecName:    s["codec_long_name"],
		Width:        atoi(s["width"]),
		Height:       atoi(s["height"]),
		Profile:      s["profile"],
		AvgFrameRate: parseFrameRate(s["avg_frame_rate"]),
		Encoder:      s["TAG:encoder"],
	}

	ratio, ok := entity.ParseAspectRatio(s["display_aspect_ratio"])
	if !ok && v.Width > 0 {
		ratio = entity.ReduceAspectRatio(v.Width, v.Height)
	}
	v.AspectRatio = ratio
	return v
}

// parseFrameRate reads "num/den". Anything that is not two integers with a
// non-zero denominator yields nil.
func parseFrameRate(s string) *float64 {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return nil
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return nil
	}
	d, err := strconv.Atoi(den)
	if err != nil || d == 0 {
		return nil
	}
	rate := math.Round(float64(n)/float64(d)*10000) / 10000
	return &rate
}

// parseCreationTime scrapes ffmpeg diagnostics for a start date, falling back
// to the container creation_time tag.
func parseCreationTime(out []byte) *time.Time {
	for _, pattern := range []*regexp.Regexp{startDatePattern, creationTimePattern} {
		m := pattern.FindSubmatch(out)
		if m == nil {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, string(m[1]))
		if err != nil {
			continue
		}
		t = t.UTC()
		return &t
	}
	return nil
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
