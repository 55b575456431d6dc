package tmdb

import "github.com/havtorin/moviebot/pkg/models"

// Match is the best-guess resolution of a free-text title query.
type Match struct {
	ID    int64
	Kind  models.TitleKind
	Title string
}

// Details holds full catalog attributes of one title. LatestMarker is only
// populated for series: the air date of the last episode, falling back to
// the series' last air date.
type Details struct {
	Title         string
	OriginalTitle string
	ReleaseDate   string
	GenreIDs      []int64
	Rating        float64
	Popularity    float64
	PosterPath    string
	LatestMarker  string
}

// Summary is a related-title candidate as returned by the catalog.
type Summary struct {
	ID          int64
	Kind        models.TitleKind
	Title       string
	Overview    string
	GenreIDs    []int64
	Rating      float64
	Popularity  float64
	ReleaseDate string
}

// searchResponse mirrors the /search/multi and /{kind}/{id}/similar payloads.
type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID            int64   `json:"id"`
	MediaType     string  `json:"media_type"`
	Title         string  `json:"title"`
	Name          string  `json:"name"`
	OriginalTitle string  `json:"original_title"`
	OriginalName  string  `json:"original_name"`
	Overview      string  `json:"overview"`
	GenreIDs      []int64 `json:"genre_ids"`
	VoteAverage   float64 `json:"vote_average"`
	Popularity    float64 `json:"popularity"`
	ReleaseDate   string  `json:"release_date"`
	FirstAirDate  string  `json:"first_air_date"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (r searchResult) displayTitle() string {
	for _, t := range []string{r.Title, r.Name, r.OriginalTitle, r.OriginalName} {
		if t != "" {
			return t
		}
	}
	return ""
}

func (r searchResult) releaseDate() string {
	if r.ReleaseDate != "" {
		return r.ReleaseDate
	}
	return r.FirstAirDate
}

// detailsResponse mirrors /movie/{id} and /tv/{id}.
type detailsResponse struct {
	Title         string  `json:"title"`
	Name          string  `json:"name"`
	OriginalTitle string  `json:"original_title"`
	OriginalName  string  `json:"original_name"`
	ReleaseDate   string  `json:"release_date"`
	FirstAirDate  string  `json:"first_air_date"`
	LastAirDate   string  `json:"last_air_date"`
	VoteAverage   float64 `json:"vote_average"`
	Popularity    float64 `json:"popularity"`
	PosterPath    string  `json:"poster_path"`
	Genres        []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
	LastEpisodeToAir *struct {
		AirDate string `json:"air_date"`
	} `json:"last_episode_to_air"`
}

// latestMarker extracts the newest release marker of a series: the last
// episode's air date when known, otherwise the series-level last air date.
func (d detailsResponse) latestMarker() string {
	if d.LastEpisodeToAir != nil && d.LastEpisodeToAir.AirDate != "" {
		return d.LastEpisodeToAir.AirDate
	}
	return d.LastAirDate
}
