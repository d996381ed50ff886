package store

import (
	"database/sql"
	"fmt"

	"swapiapi/internal/entity"
)

type kindTable struct {
	name    string
	label   string
	columns string
}

var kindTables = map[entity.Kind]kindTable{
	entity.KindCharacter: {name: "characters", label: "name", columns: "id, natural_key, name, gender, birth_year"},
	entity.KindFilm:      {name: "films", label: "title", columns: "id, natural_key, title, director, producer, release_date"},
	entity.KindStarship:  {name: "starships", label: "name", columns: "id, natural_key, name, model, manufacturer, starship_class"},
}

func tableFor(kind entity.Kind) (kindTable, error) {
	t, ok := kindTables[kind]
	if !ok {
		return kindTable{}, fmt.Errorf("unknown entity kind %q", kind)
	}
	return t, nil
}

// edge is a join table between two kinds. left/right name its columns.
type edge struct {
	table     string
	left      string
	right     string
	leftKind  entity.Kind
	rightKind entity.Kind
}

var edges = []edge{
	{table: "character_films", left: "character_id", right: "film_id", leftKind: entity.KindCharacter, rightKind: entity.KindFilm},
	{table: "film_starships", left: "film_id", right: "starship_id", leftKind: entity.KindFilm, rightKind: entity.KindStarship},
}

// edgeFor returns the join table linking a and b. swapped reports that a is
// stored in the right-hand column.
func edgeFor(a, b entity.Kind) (e edge, swapped bool, ok bool) {
	for _, e := range edges {
		switch {
		case e.leftKind == a && e.rightKind == b:
			return e, false, true
		case e.leftKind == b && e.rightKind == a:
			return e, true, true
		}
	}
	return edge{}, false, false
}

func upsertStatement(e entity.Entity) (string, []any, error) {
	switch v := e.(type) {
	case *entity.Character:
		return `
			INSERT INTO characters (natural_key, name, gender, birth_year)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (natural_key) DO UPDATE SET
				name = EXCLUDED.name,
				gender = EXCLUDED.gender,
				birth_year = EXCLUDED.birth_year,
				updated_at = CURRENT_TIMESTAMP
			RETURNING id`, []any{v.NaturalKey, v.Name, v.Gender, v.BirthYear}, nil
	case *entity.Film:
		return `
			INSERT INTO films (natural_key, title, director, producer, release_date)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (natural_key) DO UPDATE SET
				title = EXCLUDED.title,
				director = EXCLUDED.director,
				producer = EXCLUDED.producer,
				release_date = EXCLUDED.release_date,
				updated_at = CURRENT_TIMESTAMP
			RETURNING id`, []any{v.NaturalKey, v.Title, v.Director, v.Producer, nullString(v.ReleaseDate)}, nil
	case *entity.Starship:
		return `
			INSERT INTO starships (natural_key, name, model, manufacturer, starship_class)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (natural_key) DO UPDATE SET
				name = EXCLUDED.name,
				model = EXCLUDED.model,
				manufacturer = EXCLUDED.manufacturer,
				starship_class = EXCLUDED.starship_class,
				updated_at = CURRENT_TIMESTAMP
			RETURNING id`, []any{v.NaturalKey, v.Name, v.Model, v.Manufacturer, v.StarshipClass}, nil
	}
	return "", nil, fmt.Errorf("unsupported entity type %T", e)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(kind entity.Kind, row rowScanner) (entity.Entity, error) {
	switch kind {
	case entity.KindCharacter:
		c := &entity.Character{Films: []entity.FilmRef{}}
		if err := row.Scan(&c.ID, &c.NaturalKey, &c.Name, &c.Gender, &c.BirthYear); err != nil {
			return nil, err
		}
		return c, nil
	case entity.KindFilm:
		f := &entity.Film{Characters: []entity.CharacterRef{}, Starships: []entity.StarshipRef{}}
		var release sql.NullString
		if err := row.Scan(&f.ID, &f.NaturalKey, &f.Title, &f.Director, &f.Producer, &release); err != nil {
			return nil, err
		}
		if release.Valid {
			f.ReleaseDate = &release.String
		}
		return f, nil
	case entity.KindStarship:
		s := &entity.Starship{}
		if err := row.Scan(&s.ID, &s.NaturalKey, &s.Name, &s.Model, &s.Manufacturer, &s.StarshipClass); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", kind)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
