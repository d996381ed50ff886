package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"swapiapi/internal/apperr"
	"swapiapi/internal/entity"
)

// LinkResult reports what LinkRelationship did with a reference.
type LinkResult int

const (
	// Linked means the target existed and the edge is stored.
	Linked LinkResult = iota + 1
	// Deferred means the target is unknown and a pending link was recorded.
	Deferred
)

func (r LinkResult) String() string {
	switch r {
	case Linked:
		return "linked"
	case Deferred:
		return "deferred"
	}
	return "unknown"
}

// UpsertResult is returned by CatalogRepo.Upsert.
type UpsertResult struct {
	ID int64
	// Resolved counts pending links that pointed at the upserted entity and
	// were turned into edges.
	Resolved int
}

// CatalogRepo persists characters, films, starships, their relationships
// and the pending links that wait for a target to be imported.
type CatalogRepo struct {
	db *DB
}

func NewCatalogRepo(db *DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

// Upsert inserts or updates e by natural key and, in the same transaction,
// resolves pending links that were waiting for it.
func (r *CatalogRepo) Upsert(ctx context.Context, e entity.Entity) (UpsertResult, error) {
	query, args, err := upsertStatement(e)
	if err != nil {
		return UpsertResult{}, err
	}
	kind := e.EntityKind()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return UpsertResult{}, err
	}
	defer tx.Rollback()

	if err := r.adoptLabelKey(ctx, tx, kind, e.Key(), e.Label()); err != nil {
		return UpsertResult{}, err
	}

	var id int64
	if err := tx.QueryRowContext(ctx, r.db.Rebind(query), args...).Scan(&id); err != nil {
		return UpsertResult{}, fmt.Errorf("upsert %s %s: %w", kind, e.Key(), err)
	}

	resolved, err := r.resolvePending(ctx, tx, kind, id, e.Key(), e.Label())
	if err != nil {
		return UpsertResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{ID: id, Resolved: resolved}, nil
}

// adoptLabelKey moves a row stored under its label, from an import that
// carried no url, onto key so the upsert below updates it in place.
func (r *CatalogRepo) adoptLabelKey(ctx context.Context, tx *sql.Tx, kind entity.Kind, key, label string) error {
	if key == label {
		return nil
	}
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE %s SET natural_key = ?
		WHERE natural_key = ?
		  AND NOT EXISTS (SELECT 1 FROM %s WHERE natural_key = ?)`, t.name, t.name)
	if _, err := tx.ExecContext(ctx, r.db.Rebind(query), key, label, key); err != nil {
		return fmt.Errorf("rekey %s %q: %w", kind, label, err)
	}
	return nil
}

type pendingLink struct {
	sourceKind entity.Kind
	sourceID   int64
	targetKey  string
}

func (r *CatalogRepo) resolvePending(ctx context.Context, tx *sql.Tx, kind entity.Kind, id int64, key, label string) (int, error) {
	selectSQL := fmt.Sprintf(`
		SELECT source_kind, source_id, target_key
		FROM pending_links
		WHERE target_kind = ? AND (target_key = ? OR %s = %s)`, r.db.Lower("target_key"), r.db.Lower("?"))

	rows, err := tx.QueryContext(ctx, r.db.Rebind(selectSQL), string(kind), key, label)
	if err != nil {
		return 0, fmt.Errorf("select pending links: %w", err)
	}
	var pending []pendingLink
	for rows.Next() {
		var p pendingLink
		var sourceKind string
		if err := rows.Scan(&sourceKind, &p.sourceID, &p.targetKey); err != nil {
			rows.Close()
			return 0, err
		}
		p.sourceKind = entity.Kind(sourceKind)
		pending = append(pending, p)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, p := range pending {
		if err := r.insertEdge(ctx, tx, p.sourceKind, p.sourceID, kind, id); err != nil {
			return 0, err
		}
		if err := r.deletePending(ctx, tx, p.sourceKind, p.sourceID, kind, p.targetKey); err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}

// LinkRelationship links the source entity to the target named by dstKey.
// When the target is not stored yet a pending link is recorded instead. Both
// outcomes are idempotent.
func (r *CatalogRepo) LinkRelationship(ctx context.Context, srcKind entity.Kind, srcID int64, dstKind entity.Kind, dstKey string) (LinkResult, error) {
	if _, _, ok := edgeFor(srcKind, dstKind); !ok {
		return 0, fmt.Errorf("unsupported relationship %s -> %s", srcKind, dstKind)
	}
	dstKey = strings.TrimSpace(dstKey)
	if dstKey == "" {
		return 0, fmt.Errorf("empty %s reference", dstKind)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	dstID, found, err := r.resolveKey(ctx, tx, dstKind, dstKey)
	if err != nil {
		return 0, err
	}

	result := Deferred
	if found {
		if err := r.insertEdge(ctx, tx, srcKind, srcID, dstKind, dstID); err != nil {
			return 0, err
		}
		if err := r.deletePending(ctx, tx, srcKind, srcID, dstKind, dstKey); err != nil {
			return 0, err
		}
		result = Linked
	} else {
		const pendingSQL = `
			INSERT INTO pending_links (source_kind, source_id, target_kind, target_key)
			VALUES (?, ?, ?, ?)
			ON CONFLICT DO NOTHING`
		if _, err := tx.ExecContext(ctx, r.db.Rebind(pendingSQL), string(srcKind), srcID, string(dstKind), dstKey); err != nil {
			return 0, fmt.Errorf("insert pending link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return result, nil
}

// resolveKey finds the local id for a reference. References are upstream
// URLs, but a bare name or title also matches, exact key first.
func (r *CatalogRepo) resolveKey(ctx context.Context, tx *sql.Tx, kind entity.Kind, key string) (int64, bool, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, false, err
	}
	query := fmt.Sprintf(`
		SELECT id FROM %s
		WHERE natural_key = ? OR %s = %s
		ORDER BY CASE WHEN natural_key = ? THEN 0 ELSE 1 END, id
		LIMIT 1`, t.name, r.db.Lower(t.label), r.db.Lower("?"))

	var id int64
	err = tx.QueryRowContext(ctx, r.db.Rebind(query), key, key, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolve %s %s: %w", kind, key, err)
	}
	return id, true, nil
}

func (r *CatalogRepo) insertEdge(ctx context.Context, tx *sql.Tx, srcKind entity.Kind, srcID int64, dstKind entity.Kind, dstID int64) error {
	e, swapped, ok := edgeFor(srcKind, dstKind)
	if !ok {
		return fmt.Errorf("unsupported relationship %s -> %s", srcKind, dstKind)
	}
	left, right := srcID, dstID
	if swapped {
		left, right = dstID, srcID
	}
	query := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?) ON CONFLICT DO NOTHING", e.table, e.left, e.right)
	if _, err := tx.ExecContext(ctx, r.db.Rebind(query), left, right); err != nil {
		return fmt.Errorf("insert %s edge: %w", e.table, err)
	}
	return nil
}

func (r *CatalogRepo) deletePending(ctx context.Context, tx *sql.Tx, srcKind entity.Kind, srcID int64, dstKind entity.Kind, dstKey string) error {
	const deleteSQL = `
		DELETE FROM pending_links
		WHERE source_kind = ? AND source_id = ? AND target_kind = ? AND target_key = ?`
	if _, err := tx.ExecContext(ctx, r.db.Rebind(deleteSQL), string(srcKind), srcID, string(dstKind), dstKey); err != nil {
		return fmt.Errorf("delete pending link: %w", err)
	}
	return nil
}

// List returns a page of entities in ascending id order with their
// relationships populated.
func (r *CatalogRepo) List(ctx context.Context, kind entity.Kind, skip, limit int) ([]entity.Entity, error) {
	if skip < 0 {
		return nil, apperr.NewInvalidQuery("skip", "skip must be greater than or equal to 0")
	}
	if limit <= 0 {
		return nil, apperr.NewInvalidQuery("limit", "limit must be greater than 0")
	}
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id LIMIT ? OFFSET ?", t.columns, t.name)
	items, err := r.queryEntities(ctx, kind, query, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	if err := r.attachRelations(ctx, kind, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Search returns every entity whose name (or title) contains term,
// case-insensitively, in ascending id order. No match is an empty result.
func (r *CatalogRepo) Search(ctx context.Context, kind entity.Kind, term string) ([]entity.Entity, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, apperr.NewInvalidQuery("q", "q must not be empty")
	}
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s LIKE %s ESCAPE '\' ORDER BY id`,
		t.columns, t.name, r.db.Lower(t.label), r.db.Lower("?"))
	items, err := r.queryEntities(ctx, kind, query, "%"+escapeLike(term)+"%")
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", kind, err)
	}
	if err := r.attachRelations(ctx, kind, items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetByID returns one entity with its relationships, or *apperr.NotFoundError.
func (r *CatalogRepo) GetByID(ctx context.Context, kind entity.Kind, id int64) (entity.Entity, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", t.columns, t.name)
	e, err := scanEntity(kind, r.db.QueryRowContext(ctx, r.db.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NewNotFound(string(kind), id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %d: %w", kind, id, err)
	}
	if err := r.attachRelations(ctx, kind, []entity.Entity{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// Count returns the number of stored entities of a kind.
func (r *CatalogRepo) Count(ctx context.Context, kind entity.Kind) (int, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var count int
	err = r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&count)
	return count, err
}

// CountPending returns the number of unresolved links.
func (r *CatalogRepo) CountPending(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pending_links").Scan(&count)
	return count, err
}

func (r *CatalogRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// queryEntities reads every row before returning so the connection is free
// for the relationship queries that follow.
func (r *CatalogRepo) queryEntities(ctx context.Context, kind entity.Kind, query string, args ...any) ([]entity.Entity, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []entity.Entity{}
	for rows.Next() {
		e, err := scanEntity(kind, rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

type refRow struct {
	id    int64
	label string
}

const (
	characterFilmsSQL = `
		SELECT cf.character_id, f.id, f.title
		FROM character_films cf
		JOIN films f ON f.id = cf.film_id
		WHERE cf.character_id IN (%s)
		ORDER BY f.id`
	filmCharactersSQL = `
		SELECT cf.film_id, c.id, c.name
		FROM character_films cf
		JOIN characters c ON c.id = cf.character_id
		WHERE cf.film_id IN (%s)
		ORDER BY c.id`
	filmStarshipsSQL = `
		SELECT fs.film_id, s.id, s.name
		FROM film_starships fs
		JOIN starships s ON s.id = fs.starship_id
		WHERE fs.film_id IN (%s)
		ORDER BY s.id`
)

func (r *CatalogRepo) attachRelations(ctx context.Context, kind entity.Kind, items []entity.Entity) error {
	if len(items) == 0 || kind == entity.KindStarship {
		return nil
	}
	ids := make([]int64, 0, len(items))
	for _, e := range items {
		ids = append(ids, e.LocalID())
	}

	switch kind {
	case entity.KindCharacter:
		films, err := r.loadRefs(ctx, characterFilmsSQL, ids)
		if err != nil {
			return fmt.Errorf("load character films: %w", err)
		}
		for _, e := range items {
			c := e.(*entity.Character)
			for _, ref := range films[c.ID] {
				c.Films = append(c.Films, entity.FilmRef{ID: ref.id, Title: ref.label})
			}
		}
	case entity.KindFilm:
		characters, err := r.loadRefs(ctx, filmCharactersSQL, ids)
		if err != nil {
			return fmt.Errorf("load film characters: %w", err)
		}
		starships, err := r.loadRefs(ctx, filmStarshipsSQL, ids)
		if err != nil {
			return fmt.Errorf("load film starships: %w", err)
		}
		for _, e := range items {
			f := e.(*entity.Film)
			for _, ref := range characters[f.ID] {
				f.Characters = append(f.Characters, entity.CharacterRef{ID: ref.id, Name: ref.label})
			}
			for _, ref := range starships[f.ID] {
				f.Starships = append(f.Starships, entity.StarshipRef{ID: ref.id, Name: ref.label})
			}
		}
	}
	return nil
}

func (r *CatalogRepo) loadRefs(ctx context.Context, tmpl string, ids []int64) (map[int64][]refRow, error) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf(tmpl, placeholders(len(ids)))

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]refRow, len(ids))
	for rows.Next() {
		var owner int64
		var ref refRow
		if err := rows.Scan(&owner, &ref.id, &ref.label); err != nil {
			return nil, err
		}
		out[owner] = append(out[owner], ref)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
