package entity

// Film is a movie from the upstream catalog. ReleaseDate is an ISO date
// (YYYY-MM-DD) or nil when upstream did not provide a usable one.
type Film struct {
	ID          int64          `json:"id"`
	NaturalKey  string         `json:"-"`
	Title       string         `json:"title"`
	Director    string         `json:"director"`
	Producer    string         `json:"producer"`
	ReleaseDate *string        `json:"release_date"`
	Characters  []CharacterRef `json:"characters"`
	Starships   []StarshipRef  `json:"starships"`
}

func (f *Film) EntityKind() Kind { return KindFilm }
func (f *Film) LocalID() int64   { return f.ID }
func (f *Film) Key() string      { return f.NaturalKey }
func (f *Film) Label() string    { return f.Title }
