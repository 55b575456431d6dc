package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/havtorin/moviebot/pkg/models"
)

// ErrNotFound is returned when a search yields no acceptable match. It is
// distinct from a service error so callers can tell the user apart from
// logging a degraded catalog.
var ErrNotFound = errors.New("tmdb: no match found")

// minMatchScore is the fuzzy-search acceptance threshold.
const minMatchScore = 0.5

// searchLanguages are tried in order; the best match across all of them wins.
var searchLanguages = []string{"ru-RU", "en-US"}

// Client talks to the TMDB catalog. All methods may fail on network or
// remote errors; callers must treat a failure as "no data".
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	aliases map[string]string
	log     zerolog.Logger
}

// NewClient creates a catalog client. The alias map translates popular
// localized titles to the canonical query (and comparison base) to use.
func NewClient(apiKey, baseURL string, timeout time.Duration, aliases map[string]string, logger zerolog.Logger) *Client {
	if aliases == nil {
		aliases = map[string]string{}
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		aliases: aliases,
		log:     logger.With().Str("component", "tmdb").Logger(),
	}
}

// SearchBestMatch resolves free text to the closest movie or series. The
// query runs in each configured language; every result's title variants are
// scored against the (possibly alias-mapped) query and the global best above
// the threshold is returned.
func (c *Client) SearchBestMatch(ctx context.Context, query string) (Match, error) {
	normalized := strings.ToLower(strings.TrimSpace(query))
	compareBase := normalized
	searchQuery := query
	if mapped, ok := c.aliases[normalized]; ok {
		compareBase = mapped
		searchQuery = mapped
	}

	var (
		best      Match
		bestScore float64
		lastErr   error
	)
	for _, lang := range searchLanguages {
		results, err := c.searchMulti(ctx, searchQuery, lang)
		if err != nil {
			c.log.Warn().Err(err).Str("query", searchQuery).Str("lang", lang).Msg("search failed")
			lastErr = err
			continue
		}

		for _, item := range results {
			kind, ok := mapMediaType(item.MediaType)
			if !ok {
				continue
			}
			for _, t := range []string{item.Title, item.Name, item.OriginalTitle, item.OriginalName} {
				if t == "" {
					continue
				}
				if score := Ratio(compareBase, t); score > bestScore {
					bestScore = score
					best = Match{ID: item.ID, Kind: kind, Title: item.displayTitle()}
				}
			}
		}
	}

	if bestScore < minMatchScore {
		if best == (Match{}) && lastErr != nil {
			return Match{}, lastErr
		}
		return Match{}, ErrNotFound
	}
	return best, nil
}

// GetRelated returns the catalog's related titles for one favorite.
func (c *Client) GetRelated(ctx context.Context, id int64, kind models.TitleKind) ([]Summary, error) {
	var resp searchResponse
	err := c.get(ctx, fmt.Sprintf("/%s/%d/similar", apiPath(kind), id), url.Values{
		"language": {"ru-RU"},
		"page":     {"1"},
	}, &resp)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(resp.Results))
	for _, item := range resp.Results {
		summaries = append(summaries, Summary{
			ID:          item.ID,
			Kind:        kind,
			Title:       item.displayTitle(),
			Overview:    item.Overview,
			GenreIDs:    item.GenreIDs,
			Rating:      item.VoteAverage,
			Popularity:  item.Popularity,
			ReleaseDate: item.releaseDate(),
		})
	}
	return summaries, nil
}

// GetDetails returns full attributes of one title.
func (c *Client) GetDetails(ctx context.Context, id int64, kind models.TitleKind) (Details, error) {
	var resp detailsResponse
	err := c.get(ctx, fmt.Sprintf("/%s/%d", apiPath(kind), id), url.Values{
		"language": {"ru-RU"},
	}, &resp)
	if err != nil {
		return Details{}, err
	}

	d := Details{
		Title:         firstNonEmpty(resp.Title, resp.Name),
		OriginalTitle: firstNonEmpty(resp.OriginalTitle, resp.OriginalName),
		ReleaseDate:   firstNonEmpty(resp.ReleaseDate, resp.FirstAirDate),
		Rating:        resp.VoteAverage,
		Popularity:    resp.Popularity,
		PosterPath:    resp.PosterPath,
	}
	for _, g := range resp.Genres {
		d.GenreIDs = append(d.GenreIDs, g.ID)
	}
	if kind == models.KindSeries {
		d.LatestMarker = resp.latestMarker()
	}
	return d, nil
}

// LatestMarker returns the current release marker of a series.
func (c *Client) LatestMarker(ctx context.Context, id int64) (string, error) {
	d, err := c.GetDetails(ctx, id, models.KindSeries)
	if err != nil {
		return "", err
	}
	return d.LatestMarker, nil
}

func (c *Client) searchMulti(ctx context.Context, query, lang string) ([]searchResult, error) {
	var resp searchResponse
	err := c.get(ctx, "/search/multi", url.Values{
		"language": {lang},
		"query":    {query},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode catalog response: %w", err)
	}
	return nil
}

func apiPath(kind models.TitleKind) string {
	if kind == models.KindSeries {
		return "tv"
	}
	return "movie"
}

func mapMediaType(mediaType string) (models.TitleKind, bool) {
	switch mediaType {
	case "movie":
		return models.KindMovie, true
	case "tv":
		return models.KindSeries, true
	}
	return "", false
}
