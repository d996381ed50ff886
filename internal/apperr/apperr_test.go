package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassesMatchSentinels(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"upstream", &UpstreamUnavailableError{Kind: "films", Err: cause}, ErrUpstreamUnavailable},
		{"malformed", NewMalformed("characters", "", "name", "is required"), ErrMalformedRecord},
		{"invalid query", NewInvalidQuery("skip", "skip must be >= 0"), ErrInvalidQuery},
		{"not found", NewNotFound("starships", 9), ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			for _, other := range []error{ErrUpstreamUnavailable, ErrMalformedRecord, ErrInvalidQuery, ErrNotFound} {
				if other != tt.sentinel {
					assert.NotErrorIs(t, wrapped, other)
				}
			}
		})
	}
}

func TestUpstreamUnavailableError_UnwrapsCause(t *testing.T) {
	cause := errors.New("tls handshake timeout")
	err := &UpstreamUnavailableError{Kind: "characters", URL: "https://swapi.info/api/people", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "characters")
}

func TestUpstreamUnavailableError_StatusMessage(t *testing.T) {
	err := &UpstreamUnavailableError{Kind: "films", URL: "https://swapi.info/api/films", StatusCode: 503}
	assert.Equal(t, "upstream unavailable for films (status 503): https://swapi.info/api/films", err.Error())
}

func TestInvalidQueryError_MessageIsFirstField(t *testing.T) {
	err := &InvalidQueryError{Fields: []FieldError{
		{Field: "limit", Message: "limit must be greater than 0"},
		{Field: "skip", Message: "skip must be greater than or equal to 0"},
	}}
	assert.Equal(t, "limit must be greater than 0", err.Error())
	assert.Equal(t, "invalid query", (&InvalidQueryError{}).Error())
}
