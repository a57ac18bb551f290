package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// tokenFile is where `yuna login` keeps the access token
func tokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".yuna", "token")
}

// authToken returns YUNA_TOKEN, falling back to the saved login token
func authToken() string {
	if token := os.Getenv("YUNA_TOKEN"); token != "" {
		return token
	}
	data, err := os.ReadFile(tokenFile())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveToken(token string) error {
	path := tokenFile()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

// apiError is the error body every endpoint returns
type apiError struct {
	Error string `json:"error"`
}

// entryPath builds /api/{segment}/{name}/... with the name escaped
func entryPath(segment, name string, parts ...string) string {
	path := "/api/" + segment + "/" + url.PathEscape(name)
	for _, p := range parts {
		path += "/" + p
	}
	return path
}

// call sends a request and decodes the JSON answer into out when out is
// non-nil. Non-2xx answers become errors carrying the server's message.
func call(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, serverURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := authToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
