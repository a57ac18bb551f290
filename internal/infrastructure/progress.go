package infrastructure

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	percentRegex  = regexp.MustCompile(`([\d.]+)%`)
	segmentsRegex = regexp.MustCompile(`(\d+)/(\d+)`)
	outTimeRegex  = regexp.MustCompile(`^out_time=(\d+):(\d+):([\d.]+)`)
)

// defaultStreamDuration is assumed when ffmpeg cannot tell how long a stream is
const defaultStreamDuration = 45 * time.Minute

// parseNm3u8Progress extracts a percentage from an N_m3u8DL-RE status line.
// The tool prints "cur/total" segment counters next to the percentage;
// the percentage wins when both are present.
func parseNm3u8Progress(line string) (float64, bool) {
	if m := percentRegex.FindAllStringSubmatch(line, -1); len(m) > 0 {
		if pct, err := strconv.ParseFloat(m[len(m)-1][1], 64); err == nil && pct >= 0 && pct <= 100 {
			return pct, true
		}
	}
	if m := segmentsRegex.FindStringSubmatch(line); m != nil && strings.Contains(line, "Downloaded") {
		cur, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		if total > 0 && cur <= total {
			return float64(cur) * 100 / float64(total), true
		}
	}
	return 0, false
}

// parseFFmpegProgress reads a "-progress pipe:1" key=value line
func parseFFmpegProgress(line string, duration time.Duration) (float64, bool) {
	line = strings.TrimSpace(line)
	if line == "progress=end" {
		return 100, true
	}
	if duration <= 0 {
		duration = defaultStreamDuration
	}

	var elapsed time.Duration
	switch {
	case strings.HasPrefix(line, "out_time_ms="):
		// despite the name ffmpeg reports microseconds here
		us, err := strconv.ParseInt(strings.TrimPrefix(line, "out_time_ms="), 10, 64)
		if err != nil || us < 0 {
			return 0, false
		}
		elapsed = time.Duration(us) * time.Microsecond
	case outTimeRegex.MatchString(line):
		m := outTimeRegex.FindStringSubmatch(line)
		h, _ := strconv.Atoi(m[1])
		mins, _ := strconv.Atoi(m[2])
		sec, _ := strconv.ParseFloat(m[3], 64)
		elapsed = time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute + time.Duration(sec*float64(time.Second))
	default:
		return 0, false
	}

	pct := float64(elapsed) * 100 / float64(duration)
	if pct > 99 {
		pct = 99
	}
	return pct, true
}

// scanToolLines splits on \n and \r so carriage-return progress bars
// produce one token per redraw
func scanToolLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
