// Package store persists player accounts and the audit log to PostgreSQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/questgate/authbroker/internal/model"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("store: not found")

// ErrAlreadyExists is returned when a unique constraint (username or email)
// would be violated.
var ErrAlreadyExists = errors.New("store: already exists")

// Players is the narrow persistence surface the broker's handlers call
// through; the handler package never touches pgx directly.
type Players interface {
	FindByUsername(ctx context.Context, username string) (model.Player, error)
	FindByEmail(ctx context.Context, email string) (model.Player, error)
	Create(ctx context.Context, p model.Player) (model.Player, error)
	UpdateCurrentServer(ctx context.Context, uid int64, server string) error
	UpdateReconnectCode(ctx context.Context, uid int64, code string) error
	AppendLog(ctx context.Context, entry model.LogEntry) error
}

// Postgres is the pgx-backed implementation of Players.
type Postgres struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL and returns a Postgres store handle.
func Open(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connecting: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: pinging: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() { p.pool.Close() }

// Pool exposes the underlying connection pool.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

// FindByUsername looks up a player by username. Returns ErrNotFound if no
// such player exists.
func (p *Postgres) FindByUsername(ctx context.Context, username string) (model.Player, error) {
	var pl model.Player
	err := p.pool.QueryRow(ctx, `
		SELECT uid, username, email, password, COALESCE(current_server, ''),
		       COALESCE(reconnect_code, ''), sprite_id, access, created_on
		FROM player WHERE username = $1`, username,
	).Scan(&pl.UID, &pl.Username, &pl.Email, &pl.Password, &pl.CurrentServer,
		&pl.ReconnectCode, &pl.SpriteID, &pl.Access, &pl.CreatedOn)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Player{}, ErrNotFound
	}
	if err != nil {
		return model.Player{}, fmt.Errorf("store: finding player %q: %w", username, err)
	}
	return pl, nil
}

// FindByEmail looks up a player by email, the identity field the login
// handler authenticates against. Returns ErrNotFound if no such player
// exists.
func (p *Postgres) FindByEmail(ctx context.Context, email string) (model.Player, error) {
	var pl model.Player
	err := p.pool.QueryRow(ctx, `
		SELECT uid, username, email, password, COALESCE(current_server, ''),
		       COALESCE(reconnect_code, ''), sprite_id, access, created_on
		FROM player WHERE email = $1`, email,
	).Scan(&pl.UID, &pl.Username, &pl.Email, &pl.Password, &pl.CurrentServer,
		&pl.ReconnectCode, &pl.SpriteID, &pl.Access, &pl.CreatedOn)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Player{}, ErrNotFound
	}
	if err != nil {
		return model.Player{}, fmt.Errorf("store: finding player by email %q: %w", email, err)
	}
	return pl, nil
}

// Create inserts a new player row with sensible gameplay defaults and
// returns the record with its generated uid and created_on populated.
func (p *Postgres) Create(ctx context.Context, pl model.Player) (model.Player, error) {
	if pl.Access == "" {
		pl.Access = model.AccessNone
	}
	pl.CreatedOn = time.Now()

	err := p.pool.QueryRow(ctx, `
		INSERT INTO player (
			username, email, password, sprite_id, access, created_on,
			level, level_exp, reset_count, pk,
			spawn, pos, vital, vital_max, data
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			1, 0, 0, 0,
			ROW(0,0,ROW(0,0,0)), ROW(0,0,ROW(0,0,0)), 100, 100, ''
		)
		RETURNING uid`,
		pl.Username, pl.Email, pl.Password, pl.SpriteID, pl.Access, pl.CreatedOn,
	).Scan(&pl.UID)
	if isUniqueViolation(err) {
		return model.Player{}, ErrAlreadyExists
	}
	if err != nil {
		return model.Player{}, fmt.Errorf("store: creating player %q: %w", pl.Username, err)
	}
	return pl, nil
}

// UpdateCurrentServer records which server a player has been handed off to,
// or clears it when server is empty.
func (p *Postgres) UpdateCurrentServer(ctx context.Context, uid int64, server string) error {
	_, err := p.pool.Exec(ctx, `UPDATE player SET current_server = $1 WHERE uid = $2`, nullIfEmpty(server), uid)
	if err != nil {
		return fmt.Errorf("store: updating current_server for uid %d: %w", uid, err)
	}
	return nil
}

// UpdateReconnectCode stores a fresh reconnect code for uid.
func (p *Postgres) UpdateReconnectCode(ctx context.Context, uid int64, code string) error {
	_, err := p.pool.Exec(ctx, `UPDATE player SET reconnect_code = $1 WHERE uid = $2`, nullIfEmpty(code), uid)
	if err != nil {
		return fmt.Errorf("store: updating reconnect_code for uid %d: %w", uid, err)
	}
	return nil
}

// AppendLog writes one audit-trail row.
func (p *Postgres) AppendLog(ctx context.Context, entry model.LogEntry) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO logs (serverid, userid, logtype, message, ipaddress)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ServerID, entry.UserID, entry.LogType, entry.Message, entry.IPAddress)
	if err != nil {
		return fmt.Errorf("store: appending log entry: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return pgxErrorCode(err) == "23505"
}
