package infrastructure

import (
	"bufio"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseNm3u8Progress(t *testing.T) {
	tests := []struct {
		line   string
		want   float64
		wantOK bool
	}{
		{"Vid 1920x1080 | 5000 Kbps ━━━━━━━━ 120/500 24.00% 50.00MB/200MB 5.2MBps", 24, true},
		{"Downloaded 30/60 segments", 50, true},
		{"[INFO] Selected streams", 0, false},
		{"Aud it | 128 Kbps 1/3 33.33%", 33.33, true},
	}

	for _, tt := range tests {
		got, ok := parseNm3u8Progress(tt.line)
		assert.Equal(t, tt.wantOK, ok, tt.line)
		assert.InDelta(t, tt.want, got, 0.01, tt.line)
	}
}

func TestParseFFmpegProgress(t *testing.T) {
	pct, ok := parseFFmpegProgress("out_time_ms=1350000000", 0)
	assert.True(t, ok)
	assert.InDelta(t, 50, pct, 0.01)

	pct, ok = parseFFmpegProgress("out_time=00:45:00.000000", 90*time.Minute)
	assert.True(t, ok)
	assert.InDelta(t, 50, pct, 0.01)

	pct, ok = parseFFmpegProgress("out_time_ms=99999999999", 0)
	assert.True(t, ok)
	assert.Equal(t, float64(99), pct, "capped until the tool exits")

	pct, ok = parseFFmpegProgress("progress=end", 0)
	assert.True(t, ok)
	assert.Equal(t, float64(100), pct)

	_, ok = parseFFmpegProgress("bitrate=1200kbits/s", 0)
	assert.False(t, ok)
}

func TestScanToolLines(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader("10%\r20%\r30%\ndone"))
	scanner.Split(scanToolLines)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	assert.Equal(t, []string{"10%", "20%", "30%", "done"}, lines)
}
