// Package runstore records training runs and their per-epoch history in SQLite.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"eegmi/internal/model"
)

// ErrNotFound is returned for an unknown run id.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	config TEXT NOT NULL,
	samples INTEGER NOT NULL,
	epochs INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS epochs (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	epoch INTEGER NOT NULL,
	loss REAL NOT NULL,
	accuracy REAL NOT NULL,
	auc REAL NOT NULL,
	val_loss REAL,
	val_accuracy REAL,
	val_auc REAL,
	PRIMARY KEY (run_id, epoch)
);
`

// Run is one completed training run.
type Run struct {
	Name    string
	Config  any
	Samples int
	History model.History
}

// RunInfo summarizes a stored run.
type RunInfo struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Samples   int
	Epochs    int
	// FinalLoss and FinalValAccuracy come from the last epoch.
	// FinalValAccuracy is zero for runs without a validation split.
	FinalLoss        float64
	FinalValAccuracy float64
}

// Store is a SQLite-backed run ledger. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open creates or opens the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("runstore: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runstore: open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("runstore: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists run and returns its generated id.
func (s *Store) Save(ctx context.Context, run Run) (string, error) {
	h := run.History
	if h.Epochs() == 0 {
		return "", errors.New("runstore: run has no history")
	}
	cfg, err := json.Marshal(run.Config)
	if err != nil {
		return "", fmt.Errorf("runstore: encode config: %w", err)
	}
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("runstore: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, name, created_at, config, samples, epochs) VALUES (?, ?, ?, ?, ?, ?)`,
		id, run.Name, time.Now().UTC(), string(cfg), run.Samples, h.Epochs(),
	); err != nil {
		return "", fmt.Errorf("runstore: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO epochs (run_id, epoch, loss, accuracy, auc, val_loss, val_accuracy, val_auc) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("runstore: prepare: %w", err)
	}
	defer stmt.Close()
	for i := 0; i < h.Epochs(); i++ {
		if _, err := stmt.ExecContext(ctx, id, i+1, h.Loss[i], h.Accuracy[i], h.AUC[i],
			nullable(h.ValLoss, i), nullable(h.ValAccuracy, i), nullable(h.ValAUC, i)); err != nil {
			return "", fmt.Errorf("runstore: insert epoch %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("runstore: commit: %w", err)
	}
	return id, nil
}

// History loads the per-epoch history of run id.
func (s *Store) History(ctx context.Context, id string) (model.History, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT loss, accuracy, auc, val_loss, val_accuracy, val_auc FROM epochs WHERE run_id = ? ORDER BY epoch`, id)
	if err != nil {
		return model.History{}, fmt.Errorf("runstore: query history: %w", err)
	}
	defer rows.Close()

	var h model.History
	for rows.Next() {
		var loss, acc, auc float64
		var vl, va, vauc sql.NullFloat64
		if err := rows.Scan(&loss, &acc, &auc, &vl, &va, &vauc); err != nil {
			return model.History{}, fmt.Errorf("runstore: scan: %w", err)
		}
		h.Loss = append(h.Loss, loss)
		h.Accuracy = append(h.Accuracy, acc)
		h.AUC = append(h.AUC, auc)
		if vl.Valid {
			h.ValLoss = append(h.ValLoss, vl.Float64)
			h.ValAccuracy = append(h.ValAccuracy, va.Float64)
			h.ValAUC = append(h.ValAUC, vauc.Float64)
		}
	}
	if err := rows.Err(); err != nil {
		return model.History{}, err
	}
	if h.Epochs() == 0 {
		return model.History{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return h, nil
}

// Config decodes the stored configuration of run id into dst.
func (s *Store) Config(ctx context.Context, id string, dst any) error {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT config FROM runs WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("runstore: query config: %w", err)
	}
	return json.Unmarshal([]byte(raw), dst)
}

// List returns every stored run, newest first.
func (s *Store) List(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.created_at, r.samples, r.epochs, e.loss, COALESCE(e.val_accuracy, 0)
		FROM runs r JOIN epochs e ON e.run_id = r.id AND e.epoch = r.epochs
		ORDER BY r.created_at DESC, r.id`)
	if err != nil {
		return nil, fmt.Errorf("runstore: list: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.CreatedAt, &info.Samples, &info.Epochs,
			&info.FinalLoss, &info.FinalValAccuracy); err != nil {
			return nil, fmt.Errorf("runstore: scan: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func nullable(series []float64, i int) any {
	if i < len(series) {
		return series[i]
	}
	return nil
}
