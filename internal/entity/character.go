package entity

// Character is a person from the upstream catalog.
type Character struct {
	ID         int64     `json:"id"`
	NaturalKey string    `json:"-"`
	Name       string    `json:"name"`
	Gender     string    `json:"gender"`
	BirthYear  string    `json:"birth_year"`
	Films      []FilmRef `json:"films"`
}

func (c *Character) EntityKind() Kind { return KindCharacter }
func (c *Character) LocalID() int64   { return c.ID }
func (c *Character) Key() string      { return c.NaturalKey }
func (c *Character) Label() string    { return c.Name }
