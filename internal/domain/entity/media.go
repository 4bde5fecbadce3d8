package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MediaMetadata is the structural report of a media file.
type MediaMetadata struct {
	FormatID     string       `json:"formatId,omitempty"`
	FormatName   string       `json:"formatName,omitempty"`
	Duration     float64      `json:"duration"`
	BitRate      int64        `json:"bitRate,omitempty"`
	Encoder      string       `json:"encoder,omitempty"`
	Audio        *AudioStream `json:"audio,omitempty"`
	Video        *VideoStream `json:"video,omitempty"`
	CreationTime *time.Time   `json:"creationTime,omitempty"`
}

type AudioStream struct {
	CodecID       string `json:"codecId"`
	CodecName     string `json:"codecName,omitempty"`
	SampleRate    int    `json:"sampleRate,omitempty"`
	Channels      int    `json:"channels,omitempty"`
	ChannelLayout string `json:"channelLayout,omitempty"`
	BitsPerSample int    `json:"bitsPerSample,omitempty"`
	Encoder       string `json:"encoder,omitempty"`
}

type VideoStream struct {
	CodecID      string      `json:"codecId"`
	CodecName    string      `json:"codecName,omitempty"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	Profile      string      `json:"profile,omitempty"`
	AspectRatio  AspectRatio `json:"aspectRatio"`
	AvgFrameRate *float64    `json:"avgFrameRate,omitempty"`
	Encoder      string      `json:"encoder,omitempty"`
}

// AspectRatio is a display ratio such as 16:9.
type AspectRatio struct {
	Num int
	Den int
}

// ReduceAspectRatio divides width and height by their greatest common divisor.
// The zero ratio is returned unless both sides are positive.
func ReduceAspectRatio(width, height int) AspectRatio {
	if width <= 0 || height <= 0 {
		return AspectRatio{}
	}
	g := gcd(width, height)
	return AspectRatio{Num: width / g, Den: height / g}
}

// ParseAspectRatio reads "W:H". A zero or malformed part yields ok=false.
func ParseAspectRatio(s string) (AspectRatio, bool) {
	w, h, found := strings.Cut(s, ":")
	if !found {
		return AspectRatio{}, false
	}
	num, err := strconv.Atoi(w)
	if err != nil {
		return AspectRatio{}, false
	}
	den, err := strconv.Atoi(h)
	if err != nil {
		return AspectRatio{}, false
	}
	if num <= 0 || den <= 0 {
		return AspectRatio{}, false
	}
	return AspectRatio{Num: num, Den: den}, true
}

func (a AspectRatio) IsZero() bool {
	return a.Num == 0 || a.Den == 0
}

func (a AspectRatio) String() string {
	return fmt.Sprintf("%d:%d", a.Num, a.Den)
}

func (a AspectRatio) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AspectRatio) UnmarshalText(b []byte) error {
	r, ok := ParseAspectRatio(string(b))
	if !ok {
		return fmt.Errorf("invalid aspect ratio %q", string(b))
	}
	*a = r
	return nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
