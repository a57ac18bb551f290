package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yourusername/yuna-go/internal/domain"
)

// TMDBName identifies TMDB metadata results
const TMDBName = "tmdb"

// TMDB reads movie and tv metadata from The Movie Database
type TMDB struct {
	baseURL  string
	imageURL string
	apiKey   string
	language string
	http     *httpClient
}

// NewTMDB creates the client. Calls fail when no API key is configured.
func NewTMDB(cfg domain.MetadataConfig) *TMDB {
	return &TMDB{
		baseURL:  strings.TrimRight(cfg.TMDBURL, "/"),
		imageURL: strings.TrimRight(cfg.TMDBImageURL, "/"),
		apiKey:   cfg.TMDBAPIKey,
		language: cfg.TMDBLanguage,
		http:     newHTTPClient(TMDBName, 0, cfg.TMDBSpacing, ""),
	}
}

func (t *TMDB) Name() string { return TMDBName }

type tmdbItem struct {
	ID           int     `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	VoteAverage  float64 `json:"vote_average"`
	NumberOfEps  *int    `json:"number_of_episodes"`
	Genres       []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

func tmdbSegment(kind domain.MediaKind) (string, error) {
	switch kind {
	case domain.KindFilm:
		return "movie", nil
	case domain.KindSeries:
		return "tv", nil
	}
	return "", fmt.Errorf("%w: tmdb covers films and series", domain.ErrInvalidKind)
}

func (t *TMDB) candidate(kind domain.MediaKind, item tmdbItem) domain.CandidateResult {
	c := domain.CandidateResult{
		Provider: TMDBName,
		Kind:     kind,
		ID:       strconv.Itoa(item.ID),
		Name:     item.Title,
		Rating:   item.VoteAverage,
		Synopsis: item.Overview,
		Episodes: item.NumberOfEps,
	}
	date := item.ReleaseDate
	if kind == domain.KindSeries {
		c.Name = item.Name
		date = item.FirstAirDate
	}
	if len(date) >= 4 {
		c.Year = date[:4]
	}
	if item.PosterPath != "" {
		c.PosterURL = t.imageURL + item.PosterPath
	}
	for _, g := range item.Genres {
		c.Genres = append(c.Genres, g.Name)
	}
	return c
}

func (t *TMDB) endpoint(path string, params url.Values) (string, error) {
	if t.apiKey == "" {
		return "", t.http.unavailable("no API key configured")
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", t.apiKey)
	if t.language != "" {
		params.Set("language", t.language)
	}
	return t.baseURL + path + "?" + params.Encode(), nil
}

// Search queries /search/movie or /search/tv
func (t *TMDB) Search(ctx context.Context, kind domain.MediaKind, query string) ([]domain.CandidateResult, error) {
	segment, err := tmdbSegment(kind)
	if err != nil {
		return nil, nil
	}
	endpoint, err := t.endpoint("/search/"+segment, url.Values{"query": {query}})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results []tmdbItem `json:"results"`
	}
	if err := t.http.getJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	results := make([]domain.CandidateResult, 0, len(resp.Results))
	for _, item := range resp.Results {
		results = append(results, t.candidate(kind, item))
	}
	return results, nil
}

// Lookup fetches one movie or show by TMDB id
func (t *TMDB) Lookup(ctx context.Context, kind domain.MediaKind, id string) (*domain.CandidateResult, error) {
	segment, err := tmdbSegment(kind)
	if err != nil {
		return nil, err
	}
	endpoint, err := t.endpoint("/"+segment+"/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var item tmdbItem
	if err := t.http.getJSON(ctx, endpoint, nil, &item); err != nil {
		return nil, err
	}
	c := t.candidate(kind, item)
	return &c, nil
}
