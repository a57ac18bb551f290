package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellEscape(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", "''"},
		{"simple path", "/tmp/simple/path", "/tmp/simple/path"},
		{"spaces", "/media/Anime/Frieren - Episode 3.mp4", "'/media/Anime/Frieren - Episode 3.mp4'"},
		{"single quote", "JoJo's", `'JoJo'"'"'s'`},
		{"header", "Referer: https://vixcloud.co/", "'Referer: https://vixcloud.co/'"},
		{"dollar", "a$b", "'a$b'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShellEscape(tt.input))
		})
	}
}

func TestShellEscapeCommand(t *testing.T) {
	got := ShellEscapeCommand("ffmpeg", "-i", "https://cdn.example/master.m3u8?token=abc&h=1", "-y", "/tmp/out file.mp4")

	assert.Equal(t, "ffmpeg -i 'https://cdn.example/master.m3u8?h=1&token=REDACTED' -y '/tmp/out file.mp4'", got)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "--save-dir", RedactURL("--save-dir"))
	assert.Equal(t, "https://cdn.example/a.m3u8", RedactURL("https://cdn.example/a.m3u8"))
	assert.Equal(t, "https://cdn.example/a.m3u8?h=1", RedactURL("https://cdn.example/a.m3u8?h=1"))
	assert.Equal(t,
		"https://cdn.example/a.m3u8?expires=REDACTED&token=REDACTED",
		RedactURL("https://cdn.example/a.m3u8?token=secret&expires=123"))
}
