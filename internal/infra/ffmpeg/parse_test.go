package ffmpeg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReport = `[STREAM]
index=0
codec_name=h264
codec_long_name=H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10
profile=High
codec_type=video
width=1920
height=1080
display_aspect_ratio=16:9
avg_frame_rate=30000/1001
[SIDE_DATA]
side_data_type=Display Matrix
codec_type=audio
[/SIDE_DATA]
TAG:encoder=Lavc60.3.100 libx264
[/STREAM]
[STREAM]
index=1
codec_name=aac
codec_long_name=AAC (Advanced Audio Coding)
codec_type=audio
sample_rate=48000
channels=2
channel_layout=stereo
bits_per_sample=0
[/STREAM]
[STREAM]
index=2
codec_name=mp3
codec_type=audio
sample_rate=44100
channels=1
[/STREAM]
[STREAM]
index=3
codec_name=mjpeg
codec_type=video
width=320
height=240
[/STREAM]
[FORMAT]
filename=clip.mp4
format_name=mov,mp4,m4a,3gp,3g2,mj2
format_long_name=QuickTime / MOV
duration=12.345000
bit_rate=2500000
TAG:encoder=Lavf60.3.100
[/FORMAT]
`

func TestParseReport(t *testing.T) {
	meta := parseReport([]byte(sampleReport))

	assert.Equal(t, "mov,mp4,m4a,3gp,3g2,mj2", meta.FormatID)
	assert.Equal(t, "QuickTime / MOV", meta.FormatName)
	assert.InDelta(t, 12.345, meta.Duration, 1e-9)
	assert.Equal(t, int64(2500000), meta.BitRate)
	assert.Equal(t, "Lavf60.3.100", meta.Encoder)

	require.NotNil(t, meta.Video)
	assert.Equal(t, "h264", meta.Video.CodecID)
	assert.Equal(t, 1920, meta.Video.Width)
	assert.Equal(t, 1080, meta.Video.Height)
	assert.Equal(t, "High", meta.Video.Profile)
	assert.Equal(t, "16:9", meta.Video.AspectRatio.String())
	assert.Equal(t, "Lavc60.3.100 libx264", meta.Video.Encoder)
	require.NotNil(t, meta.Video.AvgFrameRate)
	assert.Equal(t, 29.97, *meta.Video.AvgFrameRate)

	require.NotNil(t, meta.Audio)
	assert.Equal(t, "aac", meta.Audio.CodecID)
	assert.Equal(t, 48000, meta.Audio.SampleRate)
	assert.Equal(t, 2, meta.Audio.Channels)
	assert.Equal(t, "stereo", meta.Audio.ChannelLayout)
	assert.Zero(t, meta.Audio.BitsPerSample)
}

func TestParseReportDerivesAspectRatio(t *testing.T) {
	report := "[STREAM]\ncodec_type=video\nwidth=640\nheight=480\ndisplay_aspect_ratio=N/A\n[/STREAM]\n"
	meta := parseReport([]byte(report))
	require.NotNil(t, meta.Video)
	assert.Equal(t, "4:3", meta.Video.AspectRatio.String())
}

func TestParseReportWithoutDimensionsLeavesRatioZero(t *testing.T) {
	report := "[STREAM]\ncodec_type=video\ndisplay_aspect_ratio=0:1\n[/STREAM]\n"
	meta := parseReport([]byte(report))
	require.NotNil(t, meta.Video)
	assert.True(t, meta.Video.AspectRatio.IsZero())
	assert.Zero(t, meta.Video.AspectRatio.Den)
}

func TestParseReportAudioOnly(t *testing.T) {
	report := "[STREAM]\ncodec_type=audio\ncodec_name=opus\nbits_per_sample=16\n[/STREAM]\n[FORMAT]\nduration=3.5\n[/FORMAT]\n"
	meta := parseReport([]byte(report))
	assert.Nil(t, meta.Video)
	require.NotNil(t, meta.Audio)
	assert.Equal(t, 16, meta.Audio.BitsPerSample)
	assert.Equal(t, 3.5, meta.Duration)
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"25/1", ptr(25.0)},
		{"30000/1001", ptr(29.97)},
		{"24000/1001", ptr(23.976)},
		{"0/0", nil},
		{"25", nil},
		{"a/1", nil},
		{"25/b", nil},
		{"", nil},
	}
	for _, tt := range tests {
		got := parseFrameRate(tt.in)
		if tt.want == nil {
			assert.Nil(t, got, tt.in)
			continue
		}
		require.NotNil(t, got, tt.in)
		assert.Equal(t, *tt.want, *got, tt.in)
	}
}

func TestParseCreationTime(t *testing.T) {
	withDate := []byte(`Input #0, mov,mp4, from 'a.mp4':
  Metadata:
    creation_time   : 2021-03-04T05:06:07.000000Z
    date            : 2020-01-02T03:04:05.123456Z
`)
	got := parseCreationTime(withDate)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2020, 1, 2, 3, 4, 5, 123456000, time.UTC), *got)

	onlyCreation := []byte("    creation_time   : 2021-03-04T05:06:07.000000Z\n")
	got = parseCreationTime(onlyCreation)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC), *got)

	assert.Nil(t, parseCreationTime([]byte("Duration: 00:00:02.00, start: 0.000000")))
}

func ptr[T any](v T) *T { return &v }
