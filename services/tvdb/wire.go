package tvdb

import (
	"encoding/json"
	"strings"
)

// Wire representations. The provider's payloads are loosely typed and some
// fields travel under more than one name, so every wire struct carries the
// known variants and normalize() applies a fixed precedence to produce the
// strict internal type.

// SearchResult is a normalized search hit.
type SearchResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
}

// Show is normalized show summary metadata.
type Show struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Poster     string `json:"poster,omitempty"`
	Overview   string `json:"overview,omitempty"`
	FirstAired string `json:"firstAired,omitempty"`
	LastAired  string `json:"lastAired,omitempty"`
	Status     string `json:"status,omitempty"`
}

// ShowExtended is normalized extended show metadata.
type ShowExtended struct {
	Show
	Network     string `json:"network,omitempty"`
	SeasonCount int    `json:"seasonCount,omitempty"`
}

// Episode is normalized episode metadata.
type Episode struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	SeasonNumber   int    `json:"seasonNumber"`
	EpisodeNumber  int    `json:"episodeNumber"`
	AirDate        string `json:"airDate,omitempty"`
	AbsoluteNumber int    `json:"absoluteNumber,omitempty"`
	Overview       string `json:"overview,omitempty"`
	Image          string `json:"image,omitempty"`
}

// flexID tolerates numeric or string ids on the wire.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// flexInt tolerates numeric or quoted-numeric values on the wire.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	var n json.Number = json.Number(s)
	v, err := n.Int64()
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}

type wireSearchResult struct {
	ID     flexID  `json:"id"`
	TVDBID flexID  `json:"tvdb_id"`
	Name   string  `json:"name"`
	Title  string  `json:"title"`
	Year   flexInt `json:"year"`
}

// searchIDPrefix is prepended by the provider to search-result ids
// ("series-123"); the bare numeric id follows it.
const searchIDPrefix = "series-"

// normalize maps a search hit to the internal type. Precedence: the
// prefixed id field wins over tvdb_id; name wins over title. Hits missing
// an id or a name are dropped.
func (w wireSearchResult) normalize() (SearchResult, bool) {
	id := strings.TrimPrefix(string(w.ID), searchIDPrefix)
	if id == "" {
		id = string(w.TVDBID)
	}
	name := w.Name
	if name == "" {
		name = w.Title
	}
	if id == "" || name == "" {
		return SearchResult{}, false
	}
	return SearchResult{ID: id, Title: name, Year: int(w.Year)}, true
}

type wireShow struct {
	ID         flexID `json:"id"`
	Name       string `json:"name"`
	Image      string `json:"image"`
	ImageURL   string `json:"image_url"`
	Overview   string `json:"overview"`
	FirstAired string `json:"firstAired"`
	LastAired  string `json:"lastAired"`
	Status     struct {
		Name string `json:"name"`
	} `json:"status"`
}

// normalize maps a show record. Precedence: image over image_url.
func (w wireShow) normalize() Show {
	poster := w.Image
	if poster == "" {
		poster = w.ImageURL
	}
	return Show{
		ID:         string(w.ID),
		Title:      w.Name,
		Poster:     poster,
		Overview:   w.Overview,
		FirstAired: w.FirstAired,
		LastAired:  w.LastAired,
		Status:     w.Status.Name,
	}
}

type wireSeason struct {
	Number int `json:"number"`
	Type   struct {
		Type string `json:"type"`
	} `json:"type"`
}

type wireShowExtended struct {
	wireShow
	Network         string `json:"network"`
	OriginalNetwork struct {
		Name string `json:"name"`
	} `json:"originalNetwork"`
	Seasons []wireSeason `json:"seasons"`
}

// normalize maps an extended show record. Precedence: network over
// originalNetwork.name. The season count only considers the provider's
// official season ordering and skips specials (season 0).
func (w wireShowExtended) normalize() ShowExtended {
	network := w.Network
	if network == "" {
		network = w.OriginalNetwork.Name
	}
	count := 0
	for _, s := range w.Seasons {
		if s.Type.Type != "" && s.Type.Type != "official" {
			continue
		}
		if s.Number > count {
			count = s.Number
		}
	}
	return ShowExtended{
		Show:        w.wireShow.normalize(),
		Network:     network,
		SeasonCount: count,
	}
}

type wireEpisode struct {
	ID             flexID  `json:"id"`
	Name           string  `json:"name"`
	SeasonNumber   flexInt `json:"seasonNumber"`
	Season         flexInt `json:"season"`
	Number         flexInt `json:"number"`
	EpisodeNumber  flexInt `json:"episodeNumber"`
	Aired          string  `json:"aired"`
	AirDate        string  `json:"airDate"`
	AbsoluteNumber flexInt `json:"absoluteNumber"`
	Overview       string  `json:"overview"`
	Image          string  `json:"image"`
	ImageURL       string  `json:"image_url"`
}

// normalize maps an episode record. Precedence: seasonNumber over season,
// number over episodeNumber, aired over airDate, image over image_url.
func (w wireEpisode) normalize() Episode {
	season := int(w.SeasonNumber)
	if season == 0 && w.Season != 0 {
		season = int(w.Season)
	}
	number := int(w.Number)
	if number == 0 && w.EpisodeNumber != 0 {
		number = int(w.EpisodeNumber)
	}
	aired := w.Aired
	if aired == "" {
		aired = w.AirDate
	}
	image := w.Image
	if image == "" {
		image = w.ImageURL
	}
	return Episode{
		ID:             string(w.ID),
		Title:          w.Name,
		SeasonNumber:   season,
		EpisodeNumber:  number,
		AirDate:        aired,
		AbsoluteNumber: int(w.AbsoluteNumber),
		Overview:       w.Overview,
		Image:          image,
	}
}
