package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "yuna.log")
	log, err := New(Config{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)

	log.Info("hello", zap.String("k", "v"))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"k":"v"`)
}

func TestMultiLogger_WritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()
	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir}, nil)
	require.NoError(t, err)
	defer ml.Close()

	ml.LogScanEvent("scan_started", zap.Int("entries", 3))
	ml.LogProgressEvent("download_complete", zap.String("name", "Frieren"))
	ml.LogAppError("persist failed", zap.String("name", "Frieren"))
	ml.Events().Debug("dropped below level")
	require.NoError(t, ml.Sync())

	reader := NewLogReader(afero.NewOsFs(), dir)

	scan, err := reader.ReadTodayLogs(CategoryScan, 0)
	require.NoError(t, err)
	require.Len(t, scan, 1)
	assert.Equal(t, "scan_started", scan[0].Message)
	assert.Equal(t, "info", scan[0].Level)
	assert.EqualValues(t, 3, scan[0].Fields["entries"])

	events, err := reader.ReadTodayLogs(CategoryEvents, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Frieren", events[0].Fields["name"])

	errs, err := reader.ReadTodayLogs(CategoryError, 0)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "error", errs[0].Level)
}

func TestNewMultiLogger_RequiresDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{}, nil)
	assert.Error(t, err)
}

func TestLoggerAdapter_Single(t *testing.T) {
	la := NewSingleLoggerAdapter(nil)
	assert.NotNil(t, la.Events())
	assert.NotNil(t, la.Scan())
	assert.Equal(t, "", la.LogsDir())
	la.LogError("ignored")
}

func TestLogReader_PlainAndLimit(t *testing.T) {
	fs := afero.NewMemMapFs()
	reader := NewLogReader(fs, "/logs")
	path := reader.GetTodayLogPath(CategoryDownload)
	content := "=== start ===\n[INFO] 10%\n\n[INFO] 55%\n{\"level\":\"info\",\"message\":\"done\",\"timestamp\":\"t\"}\n"
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))

	all, err := reader.ReadTodayLogs(CategoryDownload, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "=== start ===", all[0].Message)
	assert.Equal(t, "download", all[0].Category)

	last, err := reader.ReadTodayLogs(CategoryDownload, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "[INFO] 55%", last[0].Message)
	assert.Equal(t, "done", last[1].Message)

	found, err := reader.SearchLogs(CategoryDownload, time.Now(), "55", 0)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	missing, err := reader.ReadLogs(CategoryScan, time.Now().AddDate(0, 0, -3), 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestLogReader_Tail(t *testing.T) {
	dir := t.TempDir()
	reader := NewLogReader(afero.NewOsFs(), dir)
	path := reader.GetTodayLogPath(CategoryScan)
	require.NoError(t, os.WriteFile(path, []byte("old line\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- reader.TailLogs(ctx, CategoryScan, entries) }()

	// let the tail seek to the end before appending
	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("new line\n")
	require.NoError(t, err)
	f.Close()

	select {
	case e := <-entries:
		assert.Equal(t, "new line", e.Message)
	case <-time.After(3 * time.Second):
		t.Fatal("no entry tailed")
	}

	cancel()
	assert.NoError(t, <-done)
}
