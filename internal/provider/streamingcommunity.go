package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/yourusername/yuna-go/internal/domain"
)

// StreamingCommunityName identifies entries added from StreamingCommunity
const StreamingCommunityName = "streamingcommunity"

var (
	titlePathRe    = regexp.MustCompile(`/titles/(\d+)-([^/?#]+)`)
	streamsRe      = regexp.MustCompile(`(?s)window\.streams\s*=\s*(\[.+?\]);`)
	masterParamsRe = regexp.MustCompile(`(?s)window\.masterPlaylist\s*=\s*\{[^}]*params:\s*\{([^}]+)\}`)
	playlistURLRe  = regexp.MustCompile(`url:\s*["']([^"']+)["']`)
	tokenRe        = regexp.MustCompile(`['"]?token['"]?\s*:\s*['"]([^'"]+)['"]`)
	expiresRe      = regexp.MustCompile(`['"]?expires['"]?\s*:\s*['"]?(\d+)['"]?`)
	canPlayFHDRe   = regexp.MustCompile(`window\.canPlayFHD\s*=\s*(true|false)`)
)

// StreamingCommunity reads the Inertia page data of a StreamingCommunity
// mirror and resolves vixcloud playlists
type StreamingCommunity struct {
	baseURL string
	lang    string
	http    *httpClient

	mu      sync.Mutex
	version string
}

// NewStreamingCommunity creates the provider
func NewStreamingCommunity(cfg domain.ProvidersConfig, userAgent string) *StreamingCommunity {
	lang := cfg.Language
	if lang == "" {
		lang = "it"
	}
	return &StreamingCommunity{
		baseURL: strings.TrimRight(cfg.StreamingCommunityURL, "/"),
		lang:    lang,
		http:    newHTTPClient(StreamingCommunityName, cfg.Timeout, cfg.RequestSpacing, userAgent),
	}
}

func (s *StreamingCommunity) Name() string { return StreamingCommunityName }

func (s *StreamingCommunity) Kinds() []domain.MediaKind {
	return []domain.MediaKind{domain.KindSeries, domain.KindFilm}
}

type inertiaPage struct {
	Version string `json:"version"`
	Props   struct {
		Titles       []scTitle `json:"titles"`
		Title        scTitle   `json:"title"`
		LoadedSeason scSeason  `json:"loadedSeason"`
	} `json:"props"`
}

type scTitle struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Type        string     `json:"type"`
	Score       rawScore   `json:"score"`
	Plot        string     `json:"plot"`
	ReleaseDate string     `json:"release_date"`
	LastAirDate string     `json:"last_air_date"`
	Seasons     []scSeason `json:"seasons"`
	Images      []struct {
		Type     string `json:"type"`
		Filename string `json:"filename"`
	} `json:"images"`
	Genres []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

type scSeason struct {
	ID            int         `json:"id"`
	Number        int         `json:"number"`
	EpisodesCount int         `json:"episodes_count"`
	Episodes      []scEpisode `json:"episodes"`
}

type scEpisode struct {
	ID     int    `json:"id"`
	Number int    `json:"number"`
	Name   string `json:"name"`
}

// rawScore accepts the score both as a JSON number and as a string
type rawScore json.RawMessage

func (r *rawScore) UnmarshalJSON(b []byte) error {
	*r = append((*r)[:0], b...)
	return nil
}

func (r rawScore) value() float64 {
	v, err := strconv.ParseFloat(strings.Trim(string(r), `"`), 64)
	if err != nil {
		return 0
	}
	return v
}

func (t scTitle) kind() domain.MediaKind {
	if t.Type == "tv" {
		return domain.KindSeries
	}
	return domain.KindFilm
}

func (t scTitle) year() string {
	date := t.ReleaseDate
	if date == "" {
		date = t.LastAirDate
	}
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}

func (t scTitle) episodeCount() int {
	n := 0
	for _, season := range t.Seasons {
		n += season.EpisodesCount
	}
	return n
}

func (s *StreamingCommunity) candidate(t scTitle) domain.CandidateResult {
	c := domain.CandidateResult{
		Provider:  StreamingCommunityName,
		Kind:      t.kind(),
		ID:        strconv.Itoa(t.ID),
		Slug:      t.Slug,
		Name:      t.Name,
		URL:       fmt.Sprintf("%s/%s/titles/%d-%s", s.baseURL, s.lang, t.ID, t.Slug),
		Year:      t.year(),
		PosterURL: s.imageURL(t),
		Synopsis:  t.Plot,
	}
	c.Rating = t.Score.value()
	for _, g := range t.Genres {
		c.Genres = append(c.Genres, g.Name)
	}
	if c.Kind == domain.KindSeries && len(t.Seasons) > 0 {
		n := t.episodeCount()
		c.Episodes = &n
	}
	return c
}

func (s *StreamingCommunity) imageURL(t scTitle) string {
	for _, kind := range []string{"poster", "cover", "cover_mobile", "background"} {
		for _, img := range t.Images {
			if img.Type == kind && img.Filename != "" {
				cdn := strings.Replace(s.baseURL, "://", "://cdn.", 1)
				return cdn + "/images/" + img.Filename
			}
		}
	}
	return ""
}

// Search queries the Inertia search endpoint, keeping titles of the given kind
func (s *StreamingCommunity) Search(ctx context.Context, kind domain.MediaKind, query string) ([]domain.CandidateResult, error) {
	page, err := s.inertia(ctx, fmt.Sprintf("%s/%s/search?q=%s", s.baseURL, s.lang, url.QueryEscape(query)))
	if err != nil {
		return nil, err
	}

	var results []domain.CandidateResult
	for _, t := range page.Props.Titles {
		if kind.IsValid() && t.kind() != kind {
			continue
		}
		results = append(results, s.candidate(t))
	}
	return results, nil
}

// Inspect reads a title page the user pasted
func (s *StreamingCommunity) Inspect(ctx context.Context, kind domain.MediaKind, rawURL string) (*domain.CandidateResult, error) {
	m := titlePathRe.FindStringSubmatch(rawURL)
	if m == nil {
		return nil, fmt.Errorf("%w: not a StreamingCommunity title url: %s", domain.ErrInvalidRequest, rawURL)
	}
	id, _ := strconv.Atoi(m[1])
	t, err := s.title(ctx, id, m[2])
	if err != nil {
		return nil, err
	}
	c := s.candidate(*t)
	if kind.IsValid() && c.Kind != kind {
		return nil, fmt.Errorf("%w: %s is a %s, not a %s", domain.ErrInvalidRequest, c.Name, c.Kind, kind)
	}
	return &c, nil
}

// Availability sums the episode counts of every listed season. Films count
// as one unit.
func (s *StreamingCommunity) Availability(ctx context.Context, entry *domain.LibraryEntry) (*domain.Availability, error) {
	id, err := s.mediaID(entry)
	if err != nil {
		return nil, err
	}
	t, err := s.title(ctx, id, entry.Slug)
	if err != nil {
		return nil, err
	}
	if !entry.Kind.IsEpisodic() {
		return &domain.Availability{Available: 1}, nil
	}
	n := t.episodeCount()
	return &domain.Availability{Available: n, Total: &n}, nil
}

// Resolve maps an absolute episode number to its season and returns the
// authenticated master playlist
func (s *StreamingCommunity) Resolve(ctx context.Context, entry *domain.LibraryEntry, episode *int) (*domain.ResolvedStream, error) {
	id, err := s.mediaID(entry)
	if err != nil {
		return nil, err
	}

	stream := &domain.ResolvedStream{Episode: episode}
	iframeURL := fmt.Sprintf("%s/%s/iframe/%d", s.baseURL, s.lang, id)

	if entry.Kind.IsEpisodic() {
		if episode == nil {
			return nil, fmt.Errorf("episode required for %s", entry.Name)
		}
		t, err := s.title(ctx, id, entry.Slug)
		if err != nil {
			return nil, err
		}
		season, index, ok := locateEpisode(t.Seasons, *episode)
		if !ok {
			return nil, s.http.unavailable("episode %d not listed for %s", *episode, entry.Name)
		}
		page, err := s.inertia(ctx, fmt.Sprintf("%s/%s/titles/%d-%s/season-%d", s.baseURL, s.lang, id, entry.Slug, season))
		if err != nil {
			return nil, err
		}
		episodes := page.Props.LoadedSeason.Episodes
		if index >= len(episodes) {
			return nil, s.http.unavailable("season %d of %s lists %d episodes", season, entry.Name, len(episodes))
		}
		ep := episodes[index]
		stream.Season = season
		stream.EpisodeInSeason = ep.Number
		if stream.EpisodeInSeason == 0 {
			stream.EpisodeInSeason = index + 1
		}
		iframeURL += fmt.Sprintf("?episode_id=%d&next_episode=1", ep.ID)
	}

	doc, err := s.http.getDocument(ctx, iframeURL, map[string]string{"Referer": s.baseURL + "/"})
	if err != nil {
		return nil, err
	}
	embed, ok := doc.Find("iframe").First().Attr("src")
	if !ok || embed == "" {
		return nil, s.http.unavailable("no player iframe for %s", entry.Name)
	}
	embed = strings.ReplaceAll(embed, "&amp;", "&")

	player, err := s.http.getDocument(ctx, embed, map[string]string{"Referer": s.baseURL + "/"})
	if err != nil {
		return nil, err
	}
	playlist, err := parsePlayerScripts(player)
	if err != nil {
		return nil, s.http.unavailable("%s: %v", entry.Name, err)
	}

	stream.URL = playlist
	stream.Headers = map[string]string{"Referer": origin(embed) + "/"}
	return stream, nil
}

func (s *StreamingCommunity) mediaID(entry *domain.LibraryEntry) (int, error) {
	if entry.MediaID != "" {
		if id, err := strconv.Atoi(entry.MediaID); err == nil {
			return id, nil
		}
	}
	if m := titlePathRe.FindStringSubmatch(entry.SourceURL); m != nil {
		id, _ := strconv.Atoi(m[1])
		if entry.Slug == "" {
			entry.Slug = m[2]
		}
		return id, nil
	}
	return 0, fmt.Errorf("%s has no StreamingCommunity id", entry.Name)
}

func (s *StreamingCommunity) title(ctx context.Context, id int, slug string) (*scTitle, error) {
	page, err := s.inertia(ctx, fmt.Sprintf("%s/%s/titles/%d-%s", s.baseURL, s.lang, id, slug))
	if err != nil {
		return nil, err
	}
	if page.Props.Title.ID == 0 && page.Props.Title.Name == "" {
		return nil, s.http.unavailable("title %d-%s not found", id, slug)
	}
	t := page.Props.Title
	sort.Slice(t.Seasons, func(i, j int) bool { return t.Seasons[i].Number < t.Seasons[j].Number })
	return &t, nil
}

// inertia fetches a page as Inertia JSON, accepting an HTML answer with the
// data embedded in #app
func (s *StreamingCommunity) inertia(ctx context.Context, pageURL string) (*inertiaPage, error) {
	version, err := s.inertiaVersion(ctx)
	if err != nil {
		return nil, err
	}
	body, err := s.http.get(ctx, pageURL, map[string]string{
		"X-Inertia":         "true",
		"X-Inertia-Version": version,
		"Accept":            "text/html, application/xhtml+xml",
	})
	if err != nil {
		return nil, err
	}
	return s.decodePage(pageURL, body)
}

func (s *StreamingCommunity) decodePage(pageURL string, body []byte) (*inertiaPage, error) {
	raw := bytes.TrimSpace(body)
	if len(raw) == 0 || raw[0] != '{' {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return nil, s.http.unavailable("parsing %s: %v", pageURL, err)
		}
		data, ok := doc.Find("#app").First().Attr("data-page")
		if !ok {
			return nil, s.http.unavailable("no page data at %s", pageURL)
		}
		raw = []byte(data)
	}

	var page inertiaPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, s.http.unavailable("decoding %s: %v", pageURL, err)
	}
	if page.Version != "" {
		s.mu.Lock()
		s.version = page.Version
		s.mu.Unlock()
	}
	return &page, nil
}

func (s *StreamingCommunity) inertiaVersion(ctx context.Context) (string, error) {
	s.mu.Lock()
	v := s.version
	s.mu.Unlock()
	if v != "" {
		return v, nil
	}

	home := s.baseURL + "/" + s.lang
	body, err := s.http.get(ctx, home, nil)
	if err != nil {
		return "", err
	}
	page, err := s.decodePage(home, body)
	if err != nil {
		return "", err
	}
	return page.Version, nil
}

// locateEpisode turns a 1-based absolute index into a season number and a
// 0-based index inside that season
func locateEpisode(seasons []scSeason, absolute int) (int, int, bool) {
	if absolute < 1 {
		return 0, 0, false
	}
	remaining := absolute
	for _, season := range seasons {
		if remaining <= season.EpisodesCount {
			return season.Number, remaining - 1, true
		}
		remaining -= season.EpisodesCount
	}
	return 0, 0, false
}

// parsePlayerScripts extracts the master playlist from the player page and
// adds the auth parameters it expects
func parsePlayerScripts(doc *goquery.Document) (string, error) {
	var scripts []string
	doc.Find("script").Each(func(i int, sel *goquery.Selection) {
		scripts = append(scripts, sel.Text())
	})
	text := strings.Join(scripts, "\n")

	var playlist, token, expires string

	if m := streamsRe.FindStringSubmatch(text); m != nil {
		var streams []struct {
			URL    string `json:"url"`
			Active bool   `json:"active"`
		}
		if err := json.Unmarshal([]byte(strings.ReplaceAll(m[1], `\/`, "/")), &streams); err == nil {
			for _, st := range streams {
				if st.Active {
					playlist = st.URL
					break
				}
			}
			if playlist == "" && len(streams) > 0 {
				playlist = streams[0].URL
			}
		}
	}

	if m := masterParamsRe.FindStringSubmatch(text); m != nil {
		if t := tokenRe.FindStringSubmatch(m[1]); t != nil {
			token = t[1]
		}
		if e := expiresRe.FindStringSubmatch(m[1]); e != nil {
			expires = e[1]
		}
	}

	if idx := strings.Index(text, "window.masterPlaylist"); idx >= 0 {
		block := text[idx:]
		if playlist == "" {
			if u := playlistURLRe.FindStringSubmatch(block); u != nil {
				playlist = strings.ReplaceAll(u[1], `\/`, "/")
			}
		}
		if token == "" {
			if t := tokenRe.FindStringSubmatch(block); t != nil {
				token = t[1]
			}
		}
		if expires == "" {
			if e := expiresRe.FindStringSubmatch(block); e != nil {
				expires = e[1]
			}
		}
	}

	if playlist == "" {
		return "", fmt.Errorf("no master playlist in player page")
	}

	u, err := url.Parse(playlist)
	if err != nil {
		return "", fmt.Errorf("bad playlist url %q: %w", playlist, err)
	}
	q := u.Query()
	if token != "" {
		q.Set("token", token)
	}
	if expires != "" {
		q.Set("expires", expires)
	}
	if m := canPlayFHDRe.FindStringSubmatch(text); m != nil && m[1] == "true" {
		q.Set("h", "1")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Scheme + "://" + u.Host
}
