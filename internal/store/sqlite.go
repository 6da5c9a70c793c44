package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/reliefworks/go-relief-registry/internal/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	// The registry serializes writes behind one lock; a single connection
	// avoids SQLITE_BUSY on overlapping reads.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS disasters (
			id INTEGER PRIMARY KEY,
			location TEXT NOT NULL,
			type TEXT NOT NULL,
			severity INTEGER NOT NULL,
			reporter TEXT NOT NULL,
			active INTEGER NOT NULL,
			funds_raised INTEGER NOT NULL,
			funds_allocated INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS resources (
			id INTEGER PRIMARY KEY,
			disaster_id INTEGER NOT NULL,
			type TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			location TEXT NOT NULL,
			provider TEXT NOT NULL,
			available INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (disaster_id) REFERENCES disasters(id)
		);

		CREATE TABLE IF NOT EXISTS workers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			skills TEXT NOT NULL,
			location TEXT NOT NULL,
			available INTEGER NOT NULL,
			completed_missions INTEGER NOT NULL,
			registered_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS assignments (
			disaster_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			worker_id TEXT NOT NULL,
			PRIMARY KEY (disaster_id, position)
		);

		CREATE TABLE IF NOT EXISTS active_disasters (
			position INTEGER PRIMARY KEY,
			disaster_id INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS available_resources (
			position INTEGER PRIMARY KEY,
			resource_id INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS registry_meta (
			key TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			actor TEXT NOT NULL,
			disaster_id INTEGER NOT NULL DEFAULT 0,
			resource_id INTEGER NOT NULL DEFAULT 0,
			worker_id TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT '',
			severity INTEGER NOT NULL DEFAULT 0,
			quantity INTEGER NOT NULL DEFAULT 0,
			amount INTEGER NOT NULL DEFAULT 0,
			purpose TEXT NOT NULL DEFAULT '',
			at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_resources_disaster_id ON resources(disaster_id);
		CREATE INDEX IF NOT EXISTS idx_assignments_disaster_id ON assignments(disaster_id);
		CREATE INDEX IF NOT EXISTS idx_notifications_at ON notifications(at);

		INSERT OR IGNORE INTO registry_meta (key, value) VALUES ('balance', 0);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) InsertDisaster(ctx context.Context, d *models.DisasterEvent) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO disasters (id, location, type, severity, reporter, active, funds_raised, funds_allocated, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.Location, d.Type, d.Severity, d.Reporter, d.Active, d.FundsRaised, d.FundsAllocated, d.CreatedAt)
		if err != nil {
			return fmt.Errorf("error inserting disaster: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO active_disasters (position, disaster_id)
			 VALUES ((SELECT COALESCE(MAX(position)+1, 0) FROM active_disasters), ?)`,
			d.ID)
		if err != nil {
			return fmt.Errorf("error appending active disaster: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) InsertResource(ctx context.Context, r *models.ReliefResource) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO resources (id, disaster_id, type, quantity, location, provider, available, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.DisasterID, r.Type, r.Quantity, r.Location, r.Provider, r.Available, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("error inserting resource: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO available_resources (position, resource_id)
			 VALUES ((SELECT COALESCE(MAX(position)+1, 0) FROM available_resources), ?)`,
			r.ID)
		if err != nil {
			return fmt.Errorf("error appending available resource: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) UpsertWorker(ctx context.Context, w *models.ReliefWorker) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workers (id, name, skills, location, available, completed_missions, registered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			skills = excluded.skills,
			location = excluded.location,
			available = excluded.available,
			completed_missions = excluded.completed_missions,
			registered_at = excluded.registered_at`,
		w.ID, w.Name, w.Skills, w.Location, w.Available, w.CompletedMissions, w.RegisteredAt)
	if err != nil {
		return fmt.Errorf("error upserting worker: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordAssignment(ctx context.Context, disasterID uint64, w *models.ReliefWorker) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO assignments (disaster_id, position, worker_id)
			 VALUES (?, (SELECT COALESCE(MAX(position)+1, 0) FROM assignments WHERE disaster_id = ?), ?)`,
			disasterID, disasterID, w.ID)
		if err != nil {
			return fmt.Errorf("error inserting assignment: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE workers SET available = ? WHERE id = ?`, w.Available, w.ID)
		if err != nil {
			return fmt.Errorf("error updating worker availability: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) RecordDonation(ctx context.Context, disasterID uint64, fundsRaised, balance int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE disasters SET funds_raised = ? WHERE id = ?`, fundsRaised, disasterID)
		if err != nil {
			return fmt.Errorf("error updating funds raised: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE registry_meta SET value = ? WHERE key = 'balance'`, balance)
		if err != nil {
			return fmt.Errorf("error updating balance: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) RecordAllocation(ctx context.Context, disasterID uint64, fundsAllocated int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE disasters SET funds_allocated = ? WHERE id = ?`, fundsAllocated, disasterID)
	if err != nil {
		return fmt.Errorf("error updating funds allocated: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordCompletion(ctx context.Context, w *models.ReliefWorker) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE workers SET available = ?, completed_missions = ? WHERE id = ?`,
		w.Available, w.CompletedMissions, w.ID)
	if err != nil {
		return fmt.Errorf("error updating worker completion: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CloseDisaster(ctx context.Context, disasterID uint64, active []uint64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE disasters SET active = 0 WHERE id = ?`, disasterID)
		if err != nil {
			return fmt.Errorf("error deactivating disaster: %w", err)
		}
		// Rewrite the list to capture post swap-and-pop order.
		if _, err := tx.ExecContext(ctx, `DELETE FROM active_disasters`); err != nil {
			return fmt.Errorf("error clearing active disasters: %w", err)
		}
		for pos, id := range active {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO active_disasters (position, disaster_id) VALUES (?, ?)`, pos, id)
			if err != nil {
				return fmt.Errorf("error rewriting active disasters: %w", err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) AppendNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, kind, actor, disaster_id, resource_id, worker_id, location, type, severity, quantity, amount, purpose, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.Kind), n.Actor, n.DisasterID, n.ResourceID, n.WorkerID,
		n.Location, n.Type, n.Severity, n.Quantity, n.Amount, n.Purpose, n.At)
	if err != nil {
		return fmt.Errorf("error inserting notification: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, actor, disaster_id, resource_id, worker_id, location, type, severity, quantity, amount, purpose, at
		 FROM notifications ORDER BY at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying notifications: %w", err)
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var kind string
		if err := rows.Scan(&n.ID, &kind, &n.Actor, &n.DisasterID, &n.ResourceID, &n.WorkerID,
			&n.Location, &n.Type, &n.Severity, &n.Quantity, &n.Amount, &n.Purpose, &n.At); err != nil {
			return nil, fmt.Errorf("error scanning notification: %w", err)
		}
		n.Kind = models.NotificationKind(kind)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Disasters:       make(map[uint64]*models.DisasterEvent),
		Resources:       make(map[uint64]*models.ReliefResource),
		Workers:         make(map[string]*models.ReliefWorker),
		DisasterWorkers: make(map[uint64][]string),
	}

	if err := s.loadDisasters(ctx, snap); err != nil {
		return nil, fmt.Errorf("error loading disasters: %w", err)
	}
	if err := s.loadResources(ctx, snap); err != nil {
		return nil, fmt.Errorf("error loading resources: %w", err)
	}
	if err := s.loadWorkers(ctx, snap); err != nil {
		return nil, fmt.Errorf("error loading workers: %w", err)
	}
	if err := s.loadAssignments(ctx, snap); err != nil {
		return nil, fmt.Errorf("error loading assignments: %w", err)
	}

	var err error
	snap.ActiveDisasters, err = s.loadIDList(ctx, `SELECT disaster_id FROM active_disasters ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("error loading active disasters: %w", err)
	}
	snap.AvailableResources, err = s.loadIDList(ctx, `SELECT resource_id FROM available_resources ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("error loading available resources: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT value FROM registry_meta WHERE key = 'balance'`).Scan(&snap.Balance)
	if err != nil {
		return nil, fmt.Errorf("error loading balance: %w", err)
	}

	return snap, nil
}

func (s *SQLiteStore) loadDisasters(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, location, type, severity, reporter, active, funds_raised, funds_allocated, created_at FROM disasters`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		d := &models.DisasterEvent{}
		if err := rows.Scan(&d.ID, &d.Location, &d.Type, &d.Severity, &d.Reporter,
			&d.Active, &d.FundsRaised, &d.FundsAllocated, &d.CreatedAt); err != nil {
			return err
		}
		snap.Disasters[d.ID] = d
		if d.ID > snap.DisasterCount {
			snap.DisasterCount = d.ID
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) loadResources(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, disaster_id, type, quantity, location, provider, available, created_at FROM resources`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		r := &models.ReliefResource{}
		if err := rows.Scan(&r.ID, &r.DisasterID, &r.Type, &r.Quantity, &r.Location,
			&r.Provider, &r.Available, &r.CreatedAt); err != nil {
			return err
		}
		snap.Resources[r.ID] = r
		if r.ID > snap.ResourceCount {
			snap.ResourceCount = r.ID
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) loadWorkers(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, skills, location, available, completed_missions, registered_at FROM workers`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		w := &models.ReliefWorker{}
		if err := rows.Scan(&w.ID, &w.Name, &w.Skills, &w.Location,
			&w.Available, &w.CompletedMissions, &w.RegisteredAt); err != nil {
			return err
		}
		snap.Workers[w.ID] = w
	}
	return rows.Err()
}

func (s *SQLiteStore) loadAssignments(ctx context.Context, snap *Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT disaster_id, worker_id FROM assignments ORDER BY disaster_id, position`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var disasterID uint64
		var workerID string
		if err := rows.Scan(&disasterID, &workerID); err != nil {
			return err
		}
		snap.DisasterWorkers[disasterID] = append(snap.DisasterWorkers[disasterID], workerID)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadIDList(ctx context.Context, query string) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
