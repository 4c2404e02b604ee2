// Package sqlitestore persists plant and harvest documents in an embedded
// SQLite database. Each row carries the document as relaxed extended JSON so
// attributes outside the known fields round-trip exactly as with Mongo.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	_ "modernc.org/sqlite"

	"github.com/conneroisu/plantlog/internal/logging"
	"github.com/conneroisu/plantlog/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS plants (
	id  TEXT PRIMARY KEY,
	doc TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS harvests (
	id       TEXT PRIMARY KEY,
	plant_id TEXT NOT NULL,
	doc      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS harvests_plant_id ON harvests (plant_id);
`

// Store is a store.Store backed by SQLite.
type Store struct {
	db     *sql.DB
	logger logging.Logger
	closed atomic.Bool
}

var _ store.Store = (*Store)(nil)

// Open creates or opens the database file at path and applies the schema.
// A nil logger discards operation timings.
func Open(ctx context.Context, path string, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db path: %w", err)
		}
	}

	// busy_timeout waits on locks instead of failing; WAL lets readers run
	// alongside the single writer.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", filepath.Clean(path))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db, logger: logger.WithComponent("store")}, nil
}

func (s *Store) ListPlants(ctx context.Context) (plants []store.Plant, err error) {
	op := logging.StartOperation(s.logger, "list_plants")
	defer func() { op.Finish(ctx, err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM plants ORDER BY rowid`)
	if err != nil {
		return nil, s.wrap(err)
	}
	defer rows.Close()

	plants = make([]store.Plant, 0)
	for rows.Next() {
		var p store.Plant
		if err := s.scanDoc(rows, &p); err != nil {
			return nil, err
		}
		plants = append(plants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(err)
	}
	return plants, nil
}

func (s *Store) GetPlant(ctx context.Context, id primitive.ObjectID) (*store.Plant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT doc FROM plants WHERE id = ?`, id.Hex())

	var p store.Plant
	if err := s.scanDoc(row, &p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreatePlant(ctx context.Context, p store.Plant) (_ primitive.ObjectID, err error) {
	op := logging.StartOperation(s.logger, "create_plant")
	defer func() { op.Finish(ctx, err) }()

	p.ID = primitive.NewObjectID()

	doc, err := bson.MarshalExtJSON(p, false, false)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("encoding plant: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `INSERT INTO plants (id, doc) VALUES (?, ?)`, p.ID.Hex(), string(doc)); err != nil {
		return primitive.NilObjectID, s.wrap(err)
	}
	return p.ID, nil
}

func (s *Store) UpdatePlant(ctx context.Context, id primitive.ObjectID, fields store.PlantFields) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE plants
		SET doc = json_set(doc, '$.name', ?, '$.variety', ?, '$.photo_url', ?, '$.date_planted', ?)
		WHERE id = ?`,
		fields.Name, fields.Variety, fields.PhotoURL, fields.DatePlanted, id.Hex())
	if err != nil {
		return s.wrap(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return s.wrap(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeletePlant removes the plant and its harvests in one transaction.
func (s *Store) DeletePlant(ctx context.Context, id primitive.ObjectID) (result store.DeleteResult, err error) {
	op := logging.StartOperation(s.logger, "delete_plant")
	defer func() { op.Finish(ctx, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, s.wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM plants WHERE id = ?`, id.Hex())
	if err != nil {
		return result, s.wrap(err)
	}
	if result.Plants, err = res.RowsAffected(); err != nil {
		return result, s.wrap(err)
	}

	res, err = tx.ExecContext(ctx, `DELETE FROM harvests WHERE plant_id = ?`, store.PlantRef(id))
	if err != nil {
		return result, s.wrap(err)
	}
	if result.Harvests, err = res.RowsAffected(); err != nil {
		return result, s.wrap(err)
	}

	if err := tx.Commit(); err != nil {
		return store.DeleteResult{}, s.wrap(err)
	}
	return result, nil
}

func (s *Store) ListHarvests(ctx context.Context, plantID string) (harvests []store.Harvest, err error) {
	op := logging.StartOperation(s.logger, "list_harvests")
	defer func() { op.Finish(ctx, err) }()

	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM harvests WHERE plant_id = ? ORDER BY rowid`, plantID)
	if err != nil {
		return nil, s.wrap(err)
	}
	defer rows.Close()

	harvests = make([]store.Harvest, 0)
	for rows.Next() {
		var h store.Harvest
		if err := s.scanDoc(rows, &h); err != nil {
			return nil, err
		}
		harvests = append(harvests, h)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap(err)
	}
	return harvests, nil
}

func (s *Store) CreateHarvest(ctx context.Context, h store.Harvest) (_ primitive.ObjectID, err error) {
	op := logging.StartOperation(s.logger, "create_harvest")
	defer func() { op.Finish(ctx, err) }()

	h.ID = primitive.NewObjectID()

	doc, err := bson.MarshalExtJSON(h, false, false)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("encoding harvest: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO harvests (id, plant_id, doc) VALUES (?, ?, ?)`,
		h.ID.Hex(), h.PlantID, string(doc)); err != nil {
		return primitive.NilObjectID, s.wrap(err)
	}
	return h.ID, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.wrap(s.db.PingContext(ctx))
}

func (s *Store) Close(ctx context.Context) error {
	s.closed.Store(true)
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanDoc(row scanner, v any) error {
	var doc string
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return s.wrap(err)
	}
	if err := bson.UnmarshalExtJSON([]byte(doc), false, v); err != nil {
		return fmt.Errorf("decoding document: %w", err)
	}
	return nil
}

// wrap marks failures on a closed database as unavailable and passes other
// errors through.
func (s *Store) wrap(err error) error {
	if err == nil {
		return nil
	}
	if s.closed.Load() || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}
