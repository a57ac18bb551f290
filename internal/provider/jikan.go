package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yourusername/yuna-go/internal/domain"
)

// JikanName identifies Jikan metadata results
const JikanName = "jikan"

const jikanSearchLimit = 10

// Jikan reads MyAnimeList metadata through the public Jikan API
type Jikan struct {
	baseURL string
	http    *httpClient
}

// NewJikan creates the client
func NewJikan(cfg domain.MetadataConfig) *Jikan {
	return &Jikan{
		baseURL: strings.TrimRight(cfg.JikanURL, "/"),
		http:    newHTTPClient(JikanName, 0, cfg.JikanSpacing, ""),
	}
}

func (j *Jikan) Name() string { return JikanName }

type jikanAnime struct {
	MalID        int      `json:"mal_id"`
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	TitleEnglish string   `json:"title_english"`
	Episodes     *int     `json:"episodes"`
	Score        *float64 `json:"score"`
	Synopsis     string   `json:"synopsis"`
	Year         *int     `json:"year"`
	Images       map[string]struct {
		ImageURL      string `json:"image_url"`
		LargeImageURL string `json:"large_image_url"`
	} `json:"images"`
	Genres []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

func (a jikanAnime) candidate() domain.CandidateResult {
	c := domain.CandidateResult{
		Provider: JikanName,
		Kind:     domain.KindAnime,
		ID:       strconv.Itoa(a.MalID),
		Name:     a.Title,
		URL:      a.URL,
		Episodes: a.Episodes,
		Synopsis: a.Synopsis,
	}
	if c.Name == "" {
		c.Name = a.TitleEnglish
	}
	if a.Score != nil {
		c.Rating = *a.Score
	}
	if a.Year != nil {
		c.Year = strconv.Itoa(*a.Year)
	}
	for _, format := range []string{"webp", "jpg"} {
		if img, ok := a.Images[format]; ok && img.ImageURL != "" {
			c.PosterURL = img.ImageURL
			break
		}
	}
	for _, g := range a.Genres {
		if g.Name != "" {
			c.Genres = append(c.Genres, g.Name)
		}
	}
	return c
}

// Search looks up anime by title. Other kinds are not covered by Jikan.
func (j *Jikan) Search(ctx context.Context, kind domain.MediaKind, query string) ([]domain.CandidateResult, error) {
	if kind != domain.KindAnime {
		return nil, nil
	}

	var resp struct {
		Data []jikanAnime `json:"data"`
	}
	endpoint := fmt.Sprintf("%s/anime?q=%s&limit=%d", j.baseURL, url.QueryEscape(query), jikanSearchLimit)
	if err := j.http.getJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	results := make([]domain.CandidateResult, 0, len(resp.Data))
	for _, a := range resp.Data {
		results = append(results, a.candidate())
	}
	return results, nil
}

// Lookup fetches one anime by MAL id
func (j *Jikan) Lookup(ctx context.Context, kind domain.MediaKind, id string) (*domain.CandidateResult, error) {
	if kind != domain.KindAnime {
		return nil, fmt.Errorf("%w: jikan only covers anime", domain.ErrInvalidKind)
	}

	var resp struct {
		Data jikanAnime `json:"data"`
	}
	if err := j.http.getJSON(ctx, j.baseURL+"/anime/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data.MalID == 0 {
		return nil, j.http.unavailable("anime %s not found", id)
	}
	c := resp.Data.candidate()
	return &c, nil
}
