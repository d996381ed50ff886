package ingest

import (
	"strings"
	"time"

	"swapiapi/internal/apperr"
	"swapiapi/internal/entity"
	"swapiapi/internal/platform/swapi"
)

// Mapped is one normalized upstream record and the references it carries.
type Mapped struct {
	Entity entity.Entity
	Refs   []entity.Ref
}

// Map converts a raw upstream record of the given kind. It never touches
// storage. A missing or mistyped name/title, or a non-string url, yields an
// *apperr.MalformedRecordError; every other field degrades to its empty value.
func Map(raw swapi.Raw, kind entity.Kind) (Mapped, error) {
	key, err := naturalKey(raw, kind)
	if err != nil {
		return Mapped{}, err
	}

	switch kind {
	case entity.KindCharacter:
		name, err := requiredString(raw, kind, key, "name")
		if err != nil {
			return Mapped{}, err
		}
		c := &entity.Character{
			NaturalKey: keyOr(key, name),
			Name:       name,
			Gender:     optionalString(raw, "gender"),
			BirthYear:  optionalString(raw, "birth_year"),
			Films:      []entity.FilmRef{},
		}
		return Mapped{Entity: c, Refs: refs(raw, "films", entity.KindFilm)}, nil

	case entity.KindFilm:
		title, err := requiredString(raw, kind, key, "title")
		if err != nil {
			return Mapped{}, err
		}
		f := &entity.Film{
			NaturalKey:  keyOr(key, title),
			Title:       title,
			Director:    optionalString(raw, "director"),
			Producer:    optionalString(raw, "producer"),
			ReleaseDate: releaseDate(raw),
			Characters:  []entity.CharacterRef{},
			Starships:   []entity.StarshipRef{},
		}
		out := refs(raw, "characters", entity.KindCharacter)
		out = append(out, refs(raw, "starships", entity.KindStarship)...)
		return Mapped{Entity: f, Refs: out}, nil

	case entity.KindStarship:
		name, err := requiredString(raw, kind, key, "name")
		if err != nil {
			return Mapped{}, err
		}
		s := &entity.Starship{
			NaturalKey:    keyOr(key, name),
			Name:          name,
			Model:         optionalString(raw, "model"),
			Manufacturer:  optionalString(raw, "manufacturer"),
			StarshipClass: optionalString(raw, "starship_class"),
		}
		return Mapped{Entity: s, Refs: refs(raw, "films", entity.KindFilm)}, nil
	}

	return Mapped{}, apperr.NewMalformed(string(kind), key, "kind", "is not supported")
}

// NormalizeKey trims whitespace and trailing slashes so that
// ".../films/1/" and ".../films/1" name the same entity.
func NormalizeKey(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}

func naturalKey(raw swapi.Raw, kind entity.Kind) (string, error) {
	v, ok := raw["url"]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", apperr.NewMalformed(string(kind), "", "url", "must be a string")
	}
	return NormalizeKey(s), nil
}

func keyOr(key, fallback string) string {
	if key != "" {
		return key
	}
	return fallback
}

func requiredString(raw swapi.Raw, kind entity.Kind, key, field string) (string, error) {
	v, ok := raw[field]
	if !ok || v == nil {
		return "", apperr.NewMalformed(string(kind), key, field, "is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", apperr.NewMalformed(string(kind), key, field, "must be a string")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", apperr.NewMalformed(string(kind), key, field, "must not be empty")
	}
	return s, nil
}

func optionalString(raw swapi.Raw, field string) string {
	s, _ := raw[field].(string)
	return strings.TrimSpace(s)
}

func releaseDate(raw swapi.Raw) *string {
	s := optionalString(raw, "release_date")
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return nil
	}
	return &s
}

func refs(raw swapi.Raw, field string, kind entity.Kind) []entity.Ref {
	list, ok := raw[field].([]any)
	if !ok {
		return nil
	}
	out := make([]entity.Ref, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			continue
		}
		key := NormalizeKey(s)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, entity.Ref{Kind: kind, Key: key})
	}
	return out
}
