package catalog

import (
	"context"
	"fmt"
	"strings"

	"swapiapi/internal/apperr"
	"swapiapi/internal/entity"
)

type Config struct {
	DefaultPageSize int
	MaxPageSize     int
}

const maxSearchLength = 100

type Service struct {
	repo Repository
	cfg  Config
}

func NewService(repo Repository, cfg Config) *Service {
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	if cfg.DefaultPageSize <= 0 || cfg.DefaultPageSize > cfg.MaxPageSize {
		cfg.DefaultPageSize = min(20, cfg.MaxPageSize)
	}
	return &Service{repo: repo, cfg: cfg}
}

// DefaultPage is used when the request omits skip and limit.
func (s *Service) DefaultPage() PageParams {
	return PageParams{Skip: 0, Limit: s.cfg.DefaultPageSize}
}

// List returns a page in ascending id order.
func (s *Service) List(ctx context.Context, kind entity.Kind, p PageParams) ([]entity.Entity, error) {
	var fields []apperr.FieldError
	fields = append(fields, checkVar("skip", p.Skip, "gte=0")...)
	fields = append(fields, checkVar("limit", p.Limit, fmt.Sprintf("gt=0,lte=%d", s.cfg.MaxPageSize))...)
	if len(fields) > 0 {
		return nil, &apperr.InvalidQueryError{Fields: fields}
	}

	items, err := s.repo.List(ctx, kind, p.Skip, p.Limit)
	if err != nil {
		return nil, err
	}
	return nonNil(items), nil
}

// Search matches q against names (titles for films). No match is an empty
// list.
func (s *Service) Search(ctx context.Context, kind entity.Kind, q string) ([]entity.Entity, error) {
	q = strings.TrimSpace(q)
	if fields := checkVar("q", q, fmt.Sprintf("required,max=%d", maxSearchLength)); len(fields) > 0 {
		return nil, &apperr.InvalidQueryError{Fields: fields}
	}

	items, err := s.repo.Search(ctx, kind, q)
	if err != nil {
		return nil, err
	}
	return nonNil(items), nil
}

func (s *Service) Get(ctx context.Context, kind entity.Kind, id int64) (entity.Entity, error) {
	return s.repo.GetByID(ctx, kind, id)
}

func nonNil(items []entity.Entity) []entity.Entity {
	if items == nil {
		return []entity.Entity{}
	}
	return items
}
