package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/yourusername/yuna-go/internal/domain"
)

// AnimeWorldName identifies entries added from AnimeWorld
const AnimeWorldName = "animeworld"

const episodeCacheTTL = 5 * time.Minute

// AnimeWorld scrapes the AnimeWorld anime catalog
type AnimeWorld struct {
	baseURL string
	http    *httpClient

	mu    sync.Mutex
	cache map[string]cachedEpisodes
}

type cachedEpisodes struct {
	page    *animePage
	fetched time.Time
}

// animePage is what we read from a /play/ page
type animePage struct {
	title    string
	slug     string
	poster   string
	episodes []animeEpisode
	total    *int
	year     string
}

type animeEpisode struct {
	num string
	id  string
}

// NewAnimeWorld creates the provider
func NewAnimeWorld(cfg domain.ProvidersConfig, userAgent string) *AnimeWorld {
	return &AnimeWorld{
		baseURL: strings.TrimRight(cfg.AnimeWorldURL, "/"),
		http:    newHTTPClient(AnimeWorldName, cfg.Timeout, cfg.RequestSpacing, userAgent),
		cache:   make(map[string]cachedEpisodes),
	}
}

func (a *AnimeWorld) Name() string { return AnimeWorldName }

func (a *AnimeWorld) Kinds() []domain.MediaKind { return []domain.MediaKind{domain.KindAnime} }

// Search queries the catalog search page
func (a *AnimeWorld) Search(ctx context.Context, _ domain.MediaKind, query string) ([]domain.CandidateResult, error) {
	doc, err := a.http.getDocument(ctx, a.baseURL+"/search?keyword="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}

	var results []domain.CandidateResult
	doc.Find(".film-list .item").Each(func(i int, item *goquery.Selection) {
		link := item.Find("a.name").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		name := strings.TrimSpace(link.Text())
		if jt, ok := link.Attr("data-jtitle"); ok && name == "" {
			name = jt
		}
		poster, _ := item.Find("img").First().Attr("src")
		results = append(results, domain.CandidateResult{
			Provider:  AnimeWorldName,
			Kind:      domain.KindAnime,
			ID:        slugFromPlayPath(href),
			Slug:      slugFromPlayPath(href),
			Name:      name,
			URL:       a.absolute(href),
			PosterURL: poster,
		})
	})
	return results, nil
}

// Inspect reads an anime page the user pasted
func (a *AnimeWorld) Inspect(ctx context.Context, _ domain.MediaKind, rawURL string) (*domain.CandidateResult, error) {
	if !strings.Contains(rawURL, "/play/") {
		return nil, fmt.Errorf("%w: not an AnimeWorld anime url: %s", domain.ErrInvalidRequest, rawURL)
	}
	page, err := a.fetchPage(ctx, rawURL, true)
	if err != nil {
		return nil, err
	}
	count := len(page.episodes)
	return &domain.CandidateResult{
		Provider:  AnimeWorldName,
		Kind:      domain.KindAnime,
		ID:        page.slug,
		Slug:      page.slug,
		Name:      page.title,
		URL:       a.absolute(rawURL),
		Year:      page.year,
		Episodes:  &count,
		PosterURL: page.poster,
	}, nil
}

// Availability counts the episodes listed on the entry page
func (a *AnimeWorld) Availability(ctx context.Context, entry *domain.LibraryEntry) (*domain.Availability, error) {
	page, err := a.fetchPage(ctx, a.entryURL(entry), true)
	if err != nil {
		return nil, err
	}
	return &domain.Availability{Available: len(page.episodes), Total: page.total}, nil
}

// Resolve returns the direct video link for an episode
func (a *AnimeWorld) Resolve(ctx context.Context, entry *domain.LibraryEntry, episode *int) (*domain.ResolvedStream, error) {
	n := 1
	if episode != nil {
		n = *episode
	}

	page, err := a.fetchPage(ctx, a.entryURL(entry), false)
	if err != nil {
		return nil, err
	}
	ep, ok := page.episode(n)
	if !ok {
		return nil, a.http.unavailable("episode %d not listed for %s", n, entry.Name)
	}

	var info struct {
		Grabber string `json:"grabber"`
		Target  string `json:"target"`
	}
	infoURL := a.baseURL + "/api/episode/info?id=" + url.QueryEscape(ep.id)
	if err := a.http.getJSON(ctx, infoURL, map[string]string{"X-Requested-With": "XMLHttpRequest"}, &info); err != nil {
		return nil, err
	}
	if info.Grabber == "" {
		return nil, a.http.unavailable("no download link for %s episode %d", entry.Name, n)
	}

	return &domain.ResolvedStream{
		URL:     info.Grabber,
		Headers: map[string]string{"Referer": a.baseURL + "/"},
		Episode: &n,
	}, nil
}

// episode prefers the site's own numbering and falls back to list position
func (p *animePage) episode(n int) (animeEpisode, bool) {
	want := strconv.Itoa(n)
	for _, ep := range p.episodes {
		if ep.num == want {
			return ep, true
		}
	}
	if n >= 1 && n <= len(p.episodes) {
		return p.episodes[n-1], true
	}
	return animeEpisode{}, false
}

func (a *AnimeWorld) entryURL(entry *domain.LibraryEntry) string {
	if entry.SourceURL != "" {
		return a.absolute(entry.SourceURL)
	}
	return a.baseURL + "/play/" + entry.Slug
}

func (a *AnimeWorld) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return a.baseURL + "/" + strings.TrimLeft(href, "/")
}

// fetchPage reads a /play/ page, reusing a recent copy unless fresh is set
func (a *AnimeWorld) fetchPage(ctx context.Context, pageURL string, fresh bool) (*animePage, error) {
	a.mu.Lock()
	cached, ok := a.cache[pageURL]
	a.mu.Unlock()
	if ok && !fresh && time.Since(cached.fetched) < episodeCacheTTL {
		return cached.page, nil
	}

	doc, err := a.http.getDocument(ctx, pageURL, nil)
	if err != nil {
		return nil, err
	}
	page := parseAnimePage(doc)
	page.slug = slugFromPlayPath(pageURL)
	if page.title == "" {
		return nil, a.http.unavailable("no anime found at %s", pageURL)
	}

	a.mu.Lock()
	a.cache[pageURL] = cachedEpisodes{page: page, fetched: time.Now()}
	a.mu.Unlock()
	return page, nil
}

func parseAnimePage(doc *goquery.Document) *animePage {
	page := &animePage{}

	page.title = strings.TrimSpace(doc.Find("#anime-title").First().Text())
	if page.title == "" {
		page.title = strings.TrimSpace(doc.Find("h2.title").First().Text())
	}
	if page.title == "" {
		if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
			page.title = strings.TrimSpace(og)
		}
	}
	page.poster, _ = doc.Find("#thumbnail-watch img, .thumb img").First().Attr("src")

	seen := map[string]bool{}
	doc.Find(".server.active .episode a").Each(func(i int, a *goquery.Selection) {
		id, ok := a.Attr("data-id")
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		num, _ := a.Attr("data-num")
		if num == "" {
			num = strings.TrimSpace(a.Text())
		}
		page.episodes = append(page.episodes, animeEpisode{num: num, id: id})
	})

	doc.Find(".info dt").Each(func(i int, dt *goquery.Selection) {
		label := strings.ToLower(strings.TrimSpace(dt.Text()))
		value := strings.TrimSpace(dt.Next().Text())
		switch {
		case strings.HasPrefix(label, "episodi"):
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				page.total = &n
			}
		case strings.HasPrefix(label, "data di uscita"):
			if fields := strings.Fields(value); len(fields) > 0 {
				page.year = fields[len(fields)-1]
			}
		}
	})

	return page
}

// slugFromPlayPath turns ".../play/frieren.abCD1/xyz" into "frieren.abCD1"
func slugFromPlayPath(p string) string {
	idx := strings.Index(p, "/play/")
	if idx < 0 {
		return ""
	}
	rest := p[idx+len("/play/"):]
	if slash := strings.IndexAny(rest, "/?#"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}
