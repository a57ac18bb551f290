package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/yuna-go/internal/domain"
)

func TestRegistry_FromConfig(t *testing.T) {
	cfg := domain.DefaultConfig()
	r := NewRegistryFromConfig(cfg)

	anime, err := r.ForKind(domain.KindAnime)
	require.NoError(t, err)
	assert.Equal(t, AnimeWorldName, anime.Name())

	films, err := r.ForKind(domain.KindFilm)
	require.NoError(t, err)
	assert.Equal(t, StreamingCommunityName, films.Name())

	assert.Len(t, r.Metadata(domain.KindAnime), 1)
	assert.Empty(t, r.Metadata(domain.KindFilm), "tmdb needs a key")

	cfg.Metadata.TMDBAPIKey = "k"
	r = NewRegistryFromConfig(cfg)
	assert.Len(t, r.Metadata(domain.KindSeries), 1)
	assert.Len(t, r.Catalogs(domain.KindSeries), 1)
}

func TestRegistry_ForEntry(t *testing.T) {
	r := NewRegistryFromConfig(domain.DefaultConfig())

	p, err := r.ForEntry(&domain.LibraryEntry{Kind: domain.KindSeries, Provider: StreamingCommunityName})
	require.NoError(t, err)
	assert.Equal(t, StreamingCommunityName, p.Name())

	p, err = r.ForEntry(&domain.LibraryEntry{Kind: domain.KindAnime})
	require.NoError(t, err)
	assert.Equal(t, AnimeWorldName, p.Name())

	_, err = r.ForEntry(&domain.LibraryEntry{Kind: domain.KindAnime, Provider: "gone"})
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))

	_, err = NewRegistry().ForKind(domain.KindAnime)
	assert.True(t, errors.Is(err, domain.ErrProviderUnavailable))
}

func TestRequestSpacer_KeepsInterval(t *testing.T) {
	s := NewRequestSpacer(40 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Acquire(ctx))
		s.Release()
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRequestSpacer_CancelledWait(t *testing.T) {
	s := NewRequestSpacer(time.Hour)
	require.NoError(t, s.Acquire(context.Background()))
	s.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Acquire(ctx), context.DeadlineExceeded)

	// the slot was given back, so a fresh caller is not stuck on the semaphore
	s.minInterval = 0
	require.NoError(t, s.Acquire(context.Background()))
	s.Release()
}
