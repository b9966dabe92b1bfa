package jikan

import "time"

// TopFilter selects the ranking used by /top/anime
type TopFilter string

const (
	// TopFilterNone ranks by score
	TopFilterNone TopFilter = ""
	// TopFilterAiring restricts to currently airing titles
	TopFilterAiring TopFilter = "airing"
	// TopFilterUpcoming restricts to announced titles
	TopFilterUpcoming TopFilter = "upcoming"
	// TopFilterPopularity ranks by member count
	TopFilterPopularity TopFilter = "bypopularity"
	// TopFilterFavorite ranks by favorites
	TopFilterFavorite TopFilter = "favorite"
)

// Valid reports whether f is a filter the API accepts
func (f TopFilter) Valid() bool {
	switch f {
	case TopFilterNone, TopFilterAiring, TopFilterUpcoming, TopFilterPopularity, TopFilterFavorite:
		return true
	}
	return false
}

// Pagination is the pagination block of list responses
type Pagination struct {
	LastVisiblePage int  `json:"last_visible_page"`
	HasNextPage     bool `json:"has_next_page"`
	CurrentPage     int  `json:"current_page"`
	Items           struct {
		Count   int `json:"count"`
		Total   int `json:"total"`
		PerPage int `json:"per_page"`
	} `json:"items"`
}

// ListResponse is the envelope of every list endpoint
type ListResponse[T any] struct {
	Data       []T         `json:"data"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// HasMore reports the API's own pagination verdict. ok is false when the
// response carried no pagination metadata.
func (r *ListResponse[T]) HasMore() (hasMore, ok bool) {
	if r.Pagination == nil {
		return false, false
	}
	return r.Pagination.HasNextPage, true
}

// ItemResponse is the envelope of single-resource endpoints
type ItemResponse[T any] struct {
	Data T `json:"data"`
}

// ImageURLs holds one format's image variants
type ImageURLs struct {
	ImageURL      string `json:"image_url"`
	SmallImageURL string `json:"small_image_url,omitempty"`
	LargeImageURL string `json:"large_image_url,omitempty"`
}

// Images groups the available formats
type Images struct {
	JPG  ImageURLs `json:"jpg"`
	WebP ImageURLs `json:"webp"`
}

// Best returns the largest available image, preferring JPG.
func (i Images) Best() string {
	switch {
	case i.JPG.LargeImageURL != "":
		return i.JPG.LargeImageURL
	case i.JPG.ImageURL != "":
		return i.JPG.ImageURL
	case i.WebP.LargeImageURL != "":
		return i.WebP.LargeImageURL
	default:
		return i.WebP.ImageURL
	}
}

// Named is the {mal_id, name} shape used by genres, studios, themes
type Named struct {
	MalID int    `json:"mal_id"`
	Type  string `json:"type,omitempty"`
	Name  string `json:"name"`
	URL   string `json:"url,omitempty"`
}

// Aired is the airing window of an anime
type Aired struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

// Anime is the anime resource as returned by /anime/{id}/full and list endpoints
type Anime struct {
	MalID         int      `json:"mal_id"`
	URL           string   `json:"url"`
	Images        Images   `json:"images"`
	Title         string   `json:"title"`
	TitleEnglish  string   `json:"title_english"`
	TitleJapanese string   `json:"title_japanese"`
	Type          string   `json:"type"`
	Source        string   `json:"source"`
	Episodes      int      `json:"episodes"`
	Status        string   `json:"status"`
	Airing        bool     `json:"airing"`
	Aired         Aired    `json:"aired"`
	Duration      string   `json:"duration"`
	Rating        string   `json:"rating"`
	Score         *float64 `json:"score"`
	ScoredBy      int      `json:"scored_by"`
	Rank          int      `json:"rank"`
	Popularity    int      `json:"popularity"`
	Members       int      `json:"members"`
	Favorites     int      `json:"favorites"`
	Synopsis      string   `json:"synopsis"`
	Season        string   `json:"season"`
	Year          int      `json:"year"`
	Studios       []Named  `json:"studios"`
	Genres        []Named  `json:"genres"`
	Themes        []Named  `json:"themes"`
}

// RecommendationEntry is the anime reference inside a recommendation
type RecommendationEntry struct {
	MalID  int    `json:"mal_id"`
	URL    string `json:"url"`
	Images Images `json:"images"`
	Title  string `json:"title"`
}

// Recommendation is an item of /anime/{id}/recommendations
type Recommendation struct {
	Entry RecommendationEntry `json:"entry"`
	Votes int                 `json:"votes"`
}

// Character is the character resource
type Character struct {
	MalID     int      `json:"mal_id"`
	URL       string   `json:"url"`
	Images    Images   `json:"images"`
	Name      string   `json:"name"`
	NameKanji string   `json:"name_kanji"`
	Nicknames []string `json:"nicknames"`
	Favorites int      `json:"favorites"`
	About     string   `json:"about"`
}

// VoiceActing is an item of /characters/{id}/voices
type VoiceActing struct {
	Language string `json:"language"`
	Person   struct {
		MalID  int    `json:"mal_id"`
		URL    string `json:"url"`
		Images Images `json:"images"`
		Name   string `json:"name"`
	} `json:"person"`
}

// Person is the person resource
type Person struct {
	MalID          int        `json:"mal_id"`
	URL            string     `json:"url"`
	Images         Images     `json:"images"`
	Name           string     `json:"name"`
	GivenName      string     `json:"given_name"`
	FamilyName     string     `json:"family_name"`
	AlternateNames []string   `json:"alternate_names"`
	Birthday       *time.Time `json:"birthday"`
	Favorites      int        `json:"favorites"`
	About          string     `json:"about"`
	WebsiteURL     string     `json:"website_url"`
}

// ProducerTitle is one of a producer's titles
type ProducerTitle struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

// Producer is the producer/studio resource
type Producer struct {
	MalID       int             `json:"mal_id"`
	URL         string          `json:"url"`
	Titles      []ProducerTitle `json:"titles"`
	Images      Images          `json:"images"`
	Favorites   int             `json:"favorites"`
	Count       int             `json:"count"`
	Established *time.Time      `json:"established"`
	About       string          `json:"about"`
}

// DefaultTitle returns the producer's "Default" title, or the first one.
func (p *Producer) DefaultTitle() string {
	for _, t := range p.Titles {
		if t.Type == "Default" {
			return t.Title
		}
	}
	if len(p.Titles) > 0 {
		return p.Titles[0].Title
	}
	return ""
}

// Genre is an item of /genres/anime
type Genre struct {
	MalID int    `json:"mal_id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SearchQuery holds the /anime search parameters
type SearchQuery struct {
	Query   string
	Genres  []int
	OrderBy string
	Sort    string
	Status  string
	Type    string
	Page    int
	Limit   int
}
