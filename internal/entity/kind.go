package entity

import "fmt"

// Kind names one of the imported entity kinds. The value doubles as the
// route segment and the table name.
type Kind string

const (
	KindCharacter Kind = "characters"
	KindFilm      Kind = "films"
	KindStarship  Kind = "starships"
)

// Kinds lists every kind in import-friendly order. Any order converges, this
// one just defers the fewest links.
var Kinds = []Kind{KindStarship, KindFilm, KindCharacter}

// ParseKind converts a route segment into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCharacter, KindFilm, KindStarship:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// Singular returns the human name used in messages ("Character", "Film", ...).
func (k Kind) Singular() string {
	switch k {
	case KindCharacter:
		return "Character"
	case KindFilm:
		return "Film"
	case KindStarship:
		return "Starship"
	}
	return string(k)
}

// Entity is implemented by *Character, *Film and *Starship.
type Entity interface {
	EntityKind() Kind
	LocalID() int64
	// Key is the natural upstream key used to deduplicate on re-import.
	Key() string
	// Label is the primary text field: a name or a title.
	Label() string
}

// Ref points at another entity by natural key. The target may not be stored yet.
type Ref struct {
	Kind Kind
	Key  string
}

// FilmRef, CharacterRef and StarshipRef are the compact forms embedded in
// detail and list responses.
type FilmRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

type CharacterRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type StarshipRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
