package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcoot/villefarm/internal/model"
	"github.com/mcoot/villefarm/internal/storage"
)

//go:embed schema.sql
var schema string

// Storage is a SQLite-backed implementation of the storage interface
type Storage struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema
func Open(path string) (*Storage, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers, which is what makes
	// UpdateFarm exclusive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Storage{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Identity operations

func (s *Storage) SaveIdentity(ctx context.Context, identity *model.Identity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identities (id, display_name, is_guest, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name, is_guest = excluded.is_guest`,
		string(identity.ID), identity.DisplayName, identity.IsGuest, identity.CreatedAt.UnixNano())
	return err
}

func (s *Storage) GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	var (
		identity  model.Identity
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, display_name, is_guest, created_at FROM identities WHERE id = ?`, string(id),
	).Scan(&identity.ID, &identity.DisplayName, &identity.IsGuest, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}
	identity.CreatedAt = fromNanos(createdAt)
	return &identity, nil
}

// Credential operations

func (s *Storage) SaveCredential(ctx context.Context, cred *model.Credential) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (username, identity_id, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET password_hash = excluded.password_hash, updated_at = excluded.updated_at`,
		cred.Username, string(cred.IdentityID), cred.PasswordHash, cred.CreatedAt.UnixNano(), cred.UpdatedAt.UnixNano())
	return err
}

func (s *Storage) GetCredentialByUsername(ctx context.Context, username string) (*model.Credential, error) {
	var (
		cred                 model.Credential
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT username, identity_id, password_hash, created_at, updated_at FROM credentials WHERE username = ?`, username,
	).Scan(&cred.Username, &cred.IdentityID, &cred.PasswordHash, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrIdentityNotFound
	}
	if err != nil {
		return nil, err
	}
	cred.CreatedAt = fromNanos(createdAt)
	cred.UpdatedAt = fromNanos(updatedAt)
	return &cred, nil
}

// Farm operations

func (s *Storage) CreateFarm(ctx context.Context, farm *model.Farm) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		owner := string(farm.Player.Owner)
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT (SELECT COUNT(*) FROM players WHERE owner = ?) + (SELECT COUNT(*) FROM plots WHERE owner = ?)`,
			owner, owner,
		).Scan(&n)
		if err != nil {
			return err
		}
		if n > 0 {
			return model.ErrAlreadyInitialized
		}

		p := farm.Player
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO players (owner, name, level, xp, energy, gold, last_login) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			owner, p.Name, p.Level, int64(p.XP), int64(p.Energy), int64(p.Gold), p.LastLogin,
		); err != nil {
			return fmt.Errorf("insert player: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO plots (owner, occupant, planted_at) VALUES (?, ?, ?)`,
			owner, string(farm.Plot.Occupant), farm.Plot.PlantedAt,
		); err != nil {
			return fmt.Errorf("insert plot: %w", err)
		}
		return nil
	})
}

func (s *Storage) GetFarm(ctx context.Context, owner model.IdentityID) (*model.Farm, error) {
	return loadFarm(ctx, s.db, owner)
}

func (s *Storage) FarmExists(ctx context.Context, owner model.IdentityID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players WHERE owner = ?`, string(owner)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Storage) UpdateFarm(ctx context.Context, owner model.IdentityID, fn storage.UpdateFunc) (*model.Farm, error) {
	var committed *model.Farm
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		farm, err := loadFarm(ctx, tx, owner)
		if err != nil {
			return err
		}
		if err := fn(farm); err != nil {
			return err
		}

		p := farm.Player
		if _, err := tx.ExecContext(ctx,
			`UPDATE players SET name = ?, level = ?, xp = ?, energy = ?, gold = ?, last_login = ? WHERE owner = ?`,
			p.Name, p.Level, int64(p.XP), int64(p.Energy), int64(p.Gold), p.LastLogin, string(owner),
		); err != nil {
			return fmt.Errorf("update player: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE plots SET occupant = ?, planted_at = ? WHERE owner = ?`,
			string(farm.Plot.Occupant), farm.Plot.PlantedAt, string(owner),
		); err != nil {
			return fmt.Errorf("update plot: %w", err)
		}
		committed = farm
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadFarm(ctx context.Context, q queryer, owner model.IdentityID) (*model.Farm, error) {
	var (
		player         model.Player
		plot           model.Plot
		xp, energy, gd int64
		occupant       string
	)
	err := q.QueryRowContext(ctx,
		`SELECT p.owner, p.name, p.level, p.xp, p.energy, p.gold, p.last_login, t.occupant, t.planted_at
		 FROM players p JOIN plots t ON t.owner = p.owner WHERE p.owner = ?`, string(owner),
	).Scan(&player.Owner, &player.Name, &player.Level, &xp, &energy, &gd, &player.LastLogin, &occupant, &plot.PlantedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	player.XP, player.Energy, player.Gold = uint64(xp), uint64(energy), uint64(gd)
	plot.Owner = player.Owner
	plot.Occupant = model.Kind(occupant)
	return &model.Farm{Player: &player, Plot: &plot}, nil
}

func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Delegation operations

func (s *Storage) SaveDelegation(ctx context.Context, d *model.Delegation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delegations (id, authority, signer, created_at, valid_until) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET valid_until = excluded.valid_until`,
		string(d.ID), string(d.Authority), string(d.Signer), d.CreatedAt.UnixNano(), d.ValidUntil.UnixNano())
	return err
}

func (s *Storage) GetDelegation(ctx context.Context, id model.DelegationID) (*model.Delegation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, authority, signer, created_at, valid_until FROM delegations WHERE id = ?`, string(id))
	d, err := scanDelegation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrDelegationNotFound
	}
	return d, err
}

func (s *Storage) DeleteDelegation(ctx context.Context, id model.DelegationID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM delegations WHERE id = ?`, string(id))
	return err
}

func (s *Storage) ListDelegations(ctx context.Context, authority model.IdentityID) ([]*model.Delegation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, authority, signer, created_at, valid_until FROM delegations
		 WHERE authority = ? ORDER BY created_at, id`, string(authority))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []*model.Delegation{}
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Storage) DeleteExpiredDelegations(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM delegations WHERE valid_until <= ?`, now.UnixNano())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDelegation(row scanner) (*model.Delegation, error) {
	var (
		d                     model.Delegation
		createdAt, validUntil int64
	)
	if err := row.Scan(&d.ID, &d.Authority, &d.Signer, &createdAt, &validUntil); err != nil {
		return nil, err
	}
	d.CreatedAt = fromNanos(createdAt)
	d.ValidUntil = fromNanos(validUntil)
	return &d, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
