// Package knowledge is the internal knowledge base: curated sources and the
// facts they state, persisted in SQLite.
//
// Store is safe for concurrent use. The pool holds a single connection, so
// statements are serialized by database/sql.
package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veritas/internal/extract"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/score"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// MatchThreshold is the keyword overlap a fact needs to count as evidence
const MatchThreshold = 0.6

// ErrSourceNotFound is returned for operations on an unknown source id
var ErrSourceNotFound = errors.New("source not found")

// Stance is how a fact relates to the statement it records
type Stance string

const (
	StanceSupports    Stance = "supports"
	StanceContradicts Stance = "contradicts"
)

// Fact is a statement attributed to a source
type Fact struct {
	ID         int64  `json:"id"`
	Statement  string `json:"statement"`
	Domain     string `json:"domain,omitempty"` // Empty applies to every domain
	Stance     Stance `json:"stance"`
	Confidence int    `json:"confidence"`
	SourceID   string `json:"source_id"`
}

// Store is the SQLite-backed knowledge base
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens or creates the knowledge base at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database path
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	pragmas := []string{"PRAGMA foreign_keys=ON"}
	if s.path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		title TEXT,
		url TEXT,
		kind TEXT NOT NULL,
		credibility INTEGER,
		published_at TEXT,
		last_verified TEXT,
		author TEXT
	);

	CREATE TABLE IF NOT EXISTS facts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		statement TEXT NOT NULL,
		domain TEXT NOT NULL DEFAULT '',
		stance TEXT NOT NULL,
		confidence INTEGER NOT NULL,
		source_id TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
		UNIQUE(statement, domain, source_id)
	);

	CREATE INDEX IF NOT EXISTS idx_facts_domain ON facts(domain);
	CREATE INDEX IF NOT EXISTS idx_facts_source ON facts(source_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// AddSource inserts or replaces a source
func (s *Store) AddSource(ctx context.Context, src model.Source) error {
	return addSource(ctx, s.db, src)
}

func addSource(ctx context.Context, db execer, src model.Source) error {
	if strings.TrimSpace(src.ID) == "" {
		return errors.New("source id is required")
	}
	name := src.Name
	if name == "" {
		name = src.ID
	}
	kind := src.Kind
	if kind == "" {
		kind = model.SourceKindOther
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO sources (id, name, title, url, kind, credibility, published_at, last_verified, author)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			title = excluded.title,
			url = excluded.url,
			kind = excluded.kind,
			credibility = excluded.credibility,
			published_at = excluded.published_at,
			last_verified = excluded.last_verified,
			author = excluded.author`,
		src.ID, name, src.Title, src.URL, string(kind), credibilityValue(src),
		formatTime(src.PublishedAt), formatTime(src.LastVerified), src.Author,
	)
	if err != nil {
		return fmt.Errorf("save source %s: %w", src.ID, err)
	}
	return nil
}

// AddFact records a fact for an existing source and returns its id. A fact
// with the same statement, domain and source is updated in place.
func (s *Store) AddFact(ctx context.Context, f Fact) (int64, error) {
	return addFact(ctx, s.db, f)
}

func addFact(ctx context.Context, db execer, f Fact) (int64, error) {
	statement := strings.TrimSpace(f.Statement)
	if statement == "" {
		return 0, errors.New("fact statement is required")
	}
	stance := f.Stance
	switch stance {
	case "":
		stance = StanceSupports
	case StanceSupports, StanceContradicts:
	default:
		return 0, fmt.Errorf("unknown stance %q", f.Stance)
	}

	var exists int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources WHERE id = ?`, f.SourceID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("lookup source %s: %w", f.SourceID, err)
	}
	if exists == 0 {
		return 0, fmt.Errorf("%w: %s", ErrSourceNotFound, f.SourceID)
	}

	var id int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO facts (statement, domain, stance, confidence, source_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(statement, domain, source_id) DO UPDATE SET
			stance = excluded.stance,
			confidence = excluded.confidence
		RETURNING id`,
		statement, strings.ToLower(strings.TrimSpace(f.Domain)), string(stance), model.ClampScore(f.Confidence), f.SourceID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save fact: %w", err)
	}
	return id, nil
}

// Source returns one source by id
func (s *Store) Source(ctx context.Context, id string) (model.Source, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, title, url, kind, credibility, published_at, last_verified, author
		FROM sources WHERE id = ?`, id)

	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Source{}, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	if err != nil {
		return model.Source{}, fmt.Errorf("load source %s: %w", id, err)
	}
	return src, nil
}

// Sources returns every source ordered by id
func (s *Store) Sources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, title, url, kind, credibility, published_at, last_verified, author
		FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// Facts returns the facts recorded for a source
func (s *Store) Facts(ctx context.Context, sourceID string) ([]Fact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, statement, domain, stance, confidence, source_id
		FROM facts WHERE source_id = ? ORDER BY id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Fact
	for rows.Next() {
		var f Fact
		var stance string
		if err := rows.Scan(&f.ID, &f.Statement, &f.Domain, &stance, &f.Confidence, &f.SourceID); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.Stance = Stance(stance)
		out = append(out, f)
	}
	return out, rows.Err()
}

// MarkVerified stamps a source's last-verified time
func (s *Store) MarkVerified(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE sources SET last_verified = ? WHERE id = ?`, formatTime(&at), id)
	if err != nil {
		return fmt.Errorf("mark verified %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
	}
	return nil
}

// UpdateCredibility applies feedback to a source's stored credibility and
// returns the new score. Unscored sources start from 70; a stored 0 is a
// score like any other.
func (s *Store) UpdateCredibility(ctx context.Context, sourceID string, fb model.Feedback) (int, error) {
	src, err := s.Source(ctx, sourceID)
	if err != nil {
		return 0, err
	}

	current := score.DefaultHistoryScore
	if src.HasCredibility() {
		current = src.CredibilityScore
	}
	updated := score.UpdateFromFeedback(current, fb, 1.0)

	if _, err := s.db.ExecContext(ctx, `UPDATE sources SET credibility = ? WHERE id = ?`, updated, sourceID); err != nil {
		return 0, fmt.Errorf("update credibility %s: %w", sourceID, err)
	}

	s.logger.Info("Source credibility updated",
		zap.String("source", sourceID),
		zap.Stringer("feedback", fb),
		zap.Int("from", current),
		zap.Int("to", updated),
	)
	return updated, nil
}

// candidate is a stored fact joined with its source
type candidate struct {
	fact   Fact
	source model.Source
}

// Verify matches statement against stored facts for domain (plus facts that
// apply to every domain; an empty domain considers all facts). A fact whose
// negation differs from the statement counts for the opposite stance.
func (s *Store) Verify(ctx context.Context, statement, domain string) (model.KnowledgeVerdict, error) {
	verdict := model.KnowledgeVerdict{
		SupportingSources:    []model.Source{},
		ContradictingSources: []model.Source{},
	}

	terms := extract.Keywords(statement)
	if len(terms) == 0 {
		return verdict, nil
	}

	candidates, err := s.candidates(ctx, strings.ToLower(strings.TrimSpace(domain)))
	if err != nil {
		return verdict, err
	}

	negated := extract.IsNegated(statement)
	var supportMass, contradictMass float64
	var supportOverlap, contradictOverlap float64
	var supporting, contradicting []model.Source

	for _, c := range candidates {
		overlap := extract.Overlap(terms, extract.Keywords(c.fact.Statement))
		if overlap < MatchThreshold {
			continue
		}

		supports := c.fact.Stance == StanceSupports
		if extract.IsNegated(c.fact.Statement) != negated {
			supports = !supports
		}

		mass := overlap * float64(c.fact.Confidence)
		if supports {
			supportMass += mass
			supportOverlap += overlap
			supporting = append(supporting, c.source)
		} else {
			contradictMass += mass
			contradictOverlap += overlap
			contradicting = append(contradicting, c.source)
		}
	}

	verdict.SupportingSources = model.DedupeSources(supporting)
	verdict.ContradictingSources = model.DedupeSources(contradicting)

	total := supportMass + contradictMass
	if total == 0 {
		return verdict, nil
	}

	verdict.IsSupported = supportMass > contradictMass
	winMass, winOverlap := contradictMass, contradictOverlap
	if verdict.IsSupported {
		winMass, winOverlap = supportMass, supportOverlap
	}
	// overlap-weighted mean confidence of the winning stance, scaled by its share
	mean := winMass / winOverlap
	verdict.Confidence = model.RoundScore(mean * winMass / total)

	s.logger.Debug("Knowledge verdict",
		zap.String("statement", statement),
		zap.Bool("supported", verdict.IsSupported),
		zap.Int("confidence", verdict.Confidence),
		zap.Int("supporting", len(verdict.SupportingSources)),
		zap.Int("contradicting", len(verdict.ContradictingSources)),
	)
	return verdict, nil
}

func (s *Store) candidates(ctx context.Context, domain string) ([]candidate, error) {
	query := `
		SELECT f.id, f.statement, f.domain, f.stance, f.confidence, f.source_id,
			s.id, s.name, s.title, s.url, s.kind, s.credibility, s.published_at, s.last_verified, s.author
		FROM facts f JOIN sources s ON s.id = f.source_id`
	var args []any
	if domain != "" {
		query += ` WHERE f.domain = ? OR f.domain = ''`
		args = append(args, domain)
	}
	query += ` ORDER BY f.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []candidate
	for rows.Next() {
		var c candidate
		var stance string
		var title, url, author, published, verified sql.NullString
		var credibility sql.NullInt64
		var kind string
		if err := rows.Scan(
			&c.fact.ID, &c.fact.Statement, &c.fact.Domain, &stance, &c.fact.Confidence, &c.fact.SourceID,
			&c.source.ID, &c.source.Name, &title, &url, &kind, &credibility, &published, &verified, &author,
		); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		c.fact.Stance = Stance(stance)
		c.source.Title = title.String
		c.source.URL = url.String
		c.source.Author = author.String
		c.source.Kind = model.ParseSourceKind(kind)
		c.source.CredibilityScore, c.source.Scored = int(credibility.Int64), credibility.Valid
		c.source.PublishedAt = parseTime(published)
		c.source.LastVerified = parseTime(verified)
		out = append(out, c)
	}
	return out, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (model.Source, error) {
	var src model.Source
	var title, url, author, published, verified sql.NullString
	var credibility sql.NullInt64
	var kind string
	if err := row.Scan(&src.ID, &src.Name, &title, &url, &kind, &credibility, &published, &verified, &author); err != nil {
		return model.Source{}, err
	}
	src.CredibilityScore, src.Scored = int(credibility.Int64), credibility.Valid
	src.Title = title.String
	src.URL = url.String
	src.Author = author.String
	src.Kind = model.ParseSourceKind(kind)
	src.PublishedAt = parseTime(published)
	src.LastVerified = parseTime(verified)
	return src, nil
}

// credibilityValue stores unscored sources as NULL
func credibilityValue(src model.Source) any {
	if !src.HasCredibility() {
		return nil
	}
	return model.ClampScore(src.CredibilityScore)
}

func formatTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
