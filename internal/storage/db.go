// Package storage is the staging store: one row per Instagram media item,
// with a nullable post_id marking rows already turned into a Ghost post.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrationsFS embed.FS

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const mediaColumns = `parent_id, media_id, caption, media_type, media_url, permalink, taken_at, post_id, ingested_at`

// DB wraps staging store operations
type DB struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open opens the staging database and applies pending migrations
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("open database: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == DriverSQLite {
		// Single writer; keep one connection so pragmas stick.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	if err := migrate(db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{db: db, driver: driver, now: time.Now}, nil
}

func migrate(db *sql.DB, driver string) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(driver); err != nil {
		return err
	}
	return goose.Up(db, "migrations/"+driver)
}

// Close closes the database
func (d *DB) Close() error {
	return d.db.Close()
}

// Driver returns the database driver name.
func (d *DB) Driver() string {
	return d.driver
}

// InsertMedia stores items that are not yet staged. Existing media ids are
// left untouched. Returns the number of rows actually inserted.
func (d *DB) InsertMedia(ctx context.Context, items []Media) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, d.rebind(`
	INSERT INTO media (`+mediaColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?)
	ON CONFLICT (media_id) DO NOTHING
	`))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := d.now().UTC()
	inserted := 0
	for _, m := range items {
		res, err := stmt.ExecContext(ctx,
			m.ParentID, m.MediaID, nullString(m.Caption), string(m.MediaType),
			m.MediaURL, m.Permalink, m.TakenAt.UTC(), now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert media %s: %w", m.MediaID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// Pending returns unpublished rows grouped by parent. Groups come in the
// order their first row was staged; within a group the top-level item is
// first, followed by children in staging order.
func (d *DB) Pending(ctx context.Context) ([]Media, error) {
	query := `
	SELECT ` + mediaColumns + `
	FROM media m
	WHERE m.post_id IS NULL
	ORDER BY
		(SELECT MIN(g.seq) FROM media g WHERE g.parent_id = m.parent_id),
		CASE WHEN m.media_id = m.parent_id THEN 0 ELSE 1 END,
		m.seq
	`
	return d.queryMedia(ctx, query)
}

// TopLevel returns every top-level row, published or not, in staging order.
func (d *DB) TopLevel(ctx context.Context) ([]Media, error) {
	query := `
	SELECT ` + mediaColumns + `
	FROM media
	WHERE media_id = parent_id
	ORDER BY seq
	`
	return d.queryMedia(ctx, query)
}

// Get retrieves a row by media id; nil when absent.
func (d *DB) Get(ctx context.Context, mediaID string) (*Media, error) {
	rows, err := d.queryMedia(ctx, `SELECT `+mediaColumns+` FROM media WHERE media_id = ?`, mediaID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// MarkPublished sets the publish marker on every listed media id in one update.
func (d *DB) MarkPublished(ctx context.Context, postID string, mediaIDs []string) (int64, error) {
	if postID == "" {
		return 0, errors.New("mark published: empty post id")
	}
	if len(mediaIDs) == 0 {
		return 0, nil
	}

	var (
		res sql.Result
		err error
	)
	if d.driver == DriverPostgres {
		res, err = d.db.ExecContext(ctx,
			`UPDATE media SET post_id = $1 WHERE media_id = ANY($2)`,
			postID, pq.Array(mediaIDs),
		)
	} else {
		args := make([]any, 0, len(mediaIDs)+1)
		args = append(args, postID)
		for _, id := range mediaIDs {
			args = append(args, id)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(mediaIDs)), ", ")
		res, err = d.db.ExecContext(ctx,
			`UPDATE media SET post_id = ? WHERE media_id IN (`+placeholders+`)`,
			args...,
		)
	}
	if err != nil {
		return 0, fmt.Errorf("mark published: %w", err)
	}
	return res.RowsAffected()
}

// Counts summarizes the staging table.
type Counts struct {
	Total     int
	Pending   int
	Published int
	Groups    int // distinct pending parents
}

// Count returns row and group totals
func (d *DB) Count(ctx context.Context) (*Counts, error) {
	c := &Counts{}
	err := d.db.QueryRowContext(ctx, `
	SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN post_id IS NULL THEN 1 ELSE 0 END), 0),
		COUNT(DISTINCT CASE WHEN post_id IS NULL THEN parent_id END)
	FROM media
	`).Scan(&c.Total, &c.Pending, &c.Groups)
	if err != nil {
		return nil, fmt.Errorf("count media: %w", err)
	}
	c.Published = c.Total - c.Pending
	return c, nil
}

func (d *DB) queryMedia(ctx context.Context, query string, args ...any) ([]Media, error) {
	rows, err := d.db.QueryContext(ctx, d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query media: %w", err)
	}
	defer rows.Close()

	var items []Media
	for rows.Next() {
		var (
			m         Media
			caption   sql.NullString
			postID    sql.NullString
			mediaType string
		)
		if err := rows.Scan(
			&m.ParentID, &m.MediaID, &caption, &mediaType, &m.MediaURL,
			&m.Permalink, &m.TakenAt, &postID, &m.IngestedAt,
		); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		m.MediaType = MediaType(mediaType)
		if caption.Valid {
			m.Caption = &caption.String
		}
		if postID.Valid {
			m.PostID = &postID.String
		}
		m.TakenAt = m.TakenAt.UTC()
		m.IngestedAt = m.IngestedAt.UTC()
		items = append(items, m)
	}
	return items, rows.Err()
}

// rebind rewrites ? placeholders to $N for postgres.
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
