package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapiapi/internal/apperr"
	"swapiapi/internal/entity"
	"swapiapi/internal/platform/swapi"
)

func TestMap_Character(t *testing.T) {
	raw := swapi.Raw{
		"name":       " Luke Skywalker ",
		"gender":     "male",
		"birth_year": "19BBY",
		"url":        "https://swapi.info/api/people/1/",
		"films": []any{
			"https://swapi.info/api/films/1/",
			"https://swapi.info/api/films/1",
			"  ",
			42,
			"https://swapi.info/api/films/2",
		},
	}

	m, err := Map(raw, entity.KindCharacter)
	require.NoError(t, err)

	c, ok := m.Entity.(*entity.Character)
	require.True(t, ok)
	assert.Equal(t, "Luke Skywalker", c.Name)
	assert.Equal(t, "male", c.Gender)
	assert.Equal(t, "19BBY", c.BirthYear)
	assert.Equal(t, "https://swapi.info/api/people/1", c.NaturalKey)
	assert.Equal(t, []entity.Ref{
		{Kind: entity.KindFilm, Key: "https://swapi.info/api/films/1"},
		{Kind: entity.KindFilm, Key: "https://swapi.info/api/films/2"},
	}, m.Refs)
}

func TestMap_Film(t *testing.T) {
	raw := swapi.Raw{
		"title":        "A New Hope",
		"director":     "George Lucas",
		"producer":     "Gary Kurtz, Rick McCallum",
		"release_date": "1977-05-25",
		"url":          "https://swapi.info/api/films/1",
		"characters":   []any{"https://swapi.info/api/people/1"},
		"starships":    []any{"https://swapi.info/api/starships/12"},
	}

	m, err := Map(raw, entity.KindFilm)
	require.NoError(t, err)

	f := m.Entity.(*entity.Film)
	assert.Equal(t, "A New Hope", f.Title)
	assert.Equal(t, "George Lucas", f.Director)
	require.NotNil(t, f.ReleaseDate)
	assert.Equal(t, "1977-05-25", *f.ReleaseDate)
	assert.Equal(t, []entity.Ref{
		{Kind: entity.KindCharacter, Key: "https://swapi.info/api/people/1"},
		{Kind: entity.KindStarship, Key: "https://swapi.info/api/starships/12"},
	}, m.Refs)
}

func TestMap_Starship(t *testing.T) {
	raw := swapi.Raw{
		"name":           "X-wing",
		"model":          "T-65 X-wing",
		"manufacturer":   "Incom Corporation",
		"starship_class": "Starfighter",
		"url":            "https://swapi.info/api/starships/12",
		"films":          []any{"https://swapi.info/api/films/1"},
	}

	m, err := Map(raw, entity.KindStarship)
	require.NoError(t, err)

	s := m.Entity.(*entity.Starship)
	assert.Equal(t, "X-wing", s.Name)
	assert.Equal(t, "Starfighter", s.StarshipClass)
	assert.Equal(t, []entity.Ref{{Kind: entity.KindFilm, Key: "https://swapi.info/api/films/1"}}, m.Refs)
}

func TestMap_OptionalFieldsDegrade(t *testing.T) {
	raw := swapi.Raw{
		"title":        "Untitled",
		"director":     12,
		"release_date": "May 1977",
		"characters":   "not a list",
	}

	m, err := Map(raw, entity.KindFilm)
	require.NoError(t, err)

	f := m.Entity.(*entity.Film)
	assert.Empty(t, f.Director)
	assert.Empty(t, f.Producer)
	assert.Nil(t, f.ReleaseDate)
	assert.Empty(t, m.Refs)
	// Without a url the title is the natural key.
	assert.Equal(t, "Untitled", f.NaturalKey)
}

func TestMap_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		kind      entity.Kind
		raw       swapi.Raw
		wantField string
		wantKey   string
	}{
		{name: "missing name", kind: entity.KindCharacter, raw: swapi.Raw{"gender": "male"}, wantField: "name"},
		{name: "null name", kind: entity.KindStarship, raw: swapi.Raw{"name": nil}, wantField: "name"},
		{name: "numeric title", kind: entity.KindFilm, raw: swapi.Raw{"title": 4, "url": "https://swapi.info/api/films/4/"}, wantField: "title", wantKey: "https://swapi.info/api/films/4"},
		{name: "blank name", kind: entity.KindCharacter, raw: swapi.Raw{"name": "   "}, wantField: "name"},
		{name: "url not a string", kind: entity.KindCharacter, raw: swapi.Raw{"name": "Luke", "url": 1}, wantField: "url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Map(tt.raw, tt.kind)
			require.ErrorIs(t, err, apperr.ErrMalformedRecord)

			var mr *apperr.MalformedRecordError
			require.ErrorAs(t, err, &mr)
			assert.Equal(t, tt.wantField, mr.Field)
			assert.Equal(t, tt.wantKey, mr.Key)
			assert.Equal(t, string(tt.kind), mr.Kind)
		})
	}
}

func TestMap_UnknownKind(t *testing.T) {
	_, err := Map(swapi.Raw{"name": "Tatooine"}, entity.Kind("planets"))
	assert.ErrorIs(t, err, apperr.ErrMalformedRecord)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "https://swapi.info/api/films/1", NormalizeKey(" https://swapi.info/api/films/1/ "))
	assert.Equal(t, "", NormalizeKey("/"))
}
