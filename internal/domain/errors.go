package domain

import "errors"

var (
	// ErrProviderUnavailable means a search, availability or resolve call failed
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrToolMissing means the downloader binary could not be found or executed
	ErrToolMissing = errors.New("download tool missing")
	// ErrDownloadFailed means every download strategy failed for a unit
	ErrDownloadFailed = errors.New("download failed")
	// ErrPersistenceFailed means a file landed on disk but the entry was not updated
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrSyncInProgress means the entry already has a sync in flight
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrEntryNotFound  = errors.New("entry not found")
	ErrEntryExists    = errors.New("entry already exists")
	ErrInvalidKind    = errors.New("invalid media kind")
	// ErrInvalidRequest covers malformed input such as an unsupported url
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnauthorized means missing, invalid or expired credentials
	ErrUnauthorized = errors.New("unauthorized")
)
