package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/yuna-go/pkg/logger"
)

func logRouter(t *testing.T) (*gin.Engine, afero.Fs, *logger.LogReader) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fs := afero.NewMemMapFs()
	reader := logger.NewLogReader(fs, "/logs")
	h := NewLogHandler(reader)

	r := gin.New()
	r.GET("/logs/categories", h.GetCategories)
	r.GET("/logs/:category", h.GetLogs)
	r.GET("/logs/:category/search", h.SearchLogs)
	r.GET("/logs/:category/export", h.ExportLogs)
	return r, fs, reader
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLogHandler_ReadAndSearch(t *testing.T) {
	r, fs, reader := logRouter(t)
	content := `{"level":"info","timestamp":"2026-10-17T10:00:00Z","message":"download_start","name":"Frieren","episode":3}
{"level":"warn","timestamp":"2026-10-17T10:05:00Z","message":"download_error","name":"Dark","error":"timeout"}
`
	require.NoError(t, afero.WriteFile(fs, reader.GetTodayLogPath(logger.CategoryEvents), []byte(content), 0644))

	w := get(r, "/logs/events?limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	var page struct {
		Count   int               `json:"count"`
		Entries []logger.LogEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Equal(t, 1, page.Count)
	assert.Equal(t, "download_error", page.Entries[0].Message)
	assert.Equal(t, "Dark", page.Entries[0].Fields["name"])

	w = get(r, "/logs/events/search?q=frieren")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Count)

	w = get(r, "/logs/events/search")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogHandler_Validation(t *testing.T) {
	r, _, _ := logRouter(t)

	assert.Equal(t, http.StatusBadRequest, get(r, "/logs/queue").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/logs/scan?date=17-10-2026").Code)

	w := get(r, "/logs/categories")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"categories":["download","events","scan","error"]}`, w.Body.String())
}

func TestLogHandler_Export(t *testing.T) {
	r, fs, reader := logRouter(t)
	date := time.Date(2026, 10, 16, 0, 0, 0, 0, time.Local)
	require.NoError(t, afero.WriteFile(fs, reader.GetLogPath(logger.CategoryDownload, date), []byte("[INFO] 100%\n"), 0644))

	w := get(r, "/logs/download/export?date=2026-10-16")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[INFO] 100%\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "download-20261016.log")

	assert.Equal(t, http.StatusNotFound, get(r, "/logs/download/export?date=2026-10-15").Code)
}
