package entity

type Starship struct {
	ID            int64  `json:"id"`
	NaturalKey    string `json:"-"`
	Name          string `json:"name"`
	Model         string `json:"model"`
	Manufacturer  string `json:"manufacturer"`
	StarshipClass string `json:"starship_class"`
}

func (s *Starship) EntityKind() Kind { return KindStarship }
func (s *Starship) LocalID() int64   { return s.ID }
func (s *Starship) Key() string      { return s.NaturalKey }
func (s *Starship) Label() string    { return s.Name }
