// Copyright 2026 The SceneForge Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/sceneforge-studio/sceneforge/collab"
	"github.com/sceneforge-studio/sceneforge/lib/clock"
	"github.com/sceneforge-studio/sceneforge/lib/codec"
	"github.com/sceneforge-studio/sceneforge/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS scenes (
	scene_id TEXT PRIMARY KEY,
	snapshot BLOB NOT NULL,
	version  INTEGER NOT NULL,
	lamport  INTEGER NOT NULL,
	hash     BLOB NOT NULL,
	saved_at TEXT NOT NULL
);
`

// Config holds the parameters for opening a SQLite store.
type Config struct {
	// Path is the database file, or ":memory:" for tests.
	Path string

	// PoolSize is the connection pool size; zero means the pool's
	// default.
	PoolSize int

	// Logger receives store activity. Nil means discard.
	Logger *slog.Logger

	// Clock stamps saved_at. Nil means the wall clock.
	Clock clock.Clock
}

// SQLite persists snapshots in a single scenes table.
type SQLite struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
	clk    clock.Clock
	enc    *zstd.Encoder
	dec    *zstd.Decoder
}

// Open opens (and if needed creates) the database.
func Open(cfg Config) (*SQLite, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		pool.Close()
		return nil, fmt.Errorf("store: zstd decoder: %w", err)
	}

	return &SQLite{pool: pool, logger: logger, clk: clk, enc: enc, dec: dec}, nil
}

// Close releases the pool and codec workers.
func (s *SQLite) Close() error {
	s.dec.Close()
	s.enc.Close()
	return s.pool.Close()
}

// Save writes the snapshot, replacing any previous row for the scene.
// When the deterministic encoding hashes identically to the stored
// row, the write is skipped.
func (s *SQLite) Save(ctx context.Context, snap collab.Snapshot) error {
	raw, err := codec.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", snap.SceneID, err)
	}
	sum := blake3.Sum256(raw)

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	var storedHash []byte
	err = sqlitex.Execute(conn, `SELECT hash FROM scenes WHERE scene_id = ?`, &sqlitex.ExecOptions{
		Args: []any{snap.SceneID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			storedHash = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, storedHash)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("store: probe %s: %w", snap.SceneID, err)
	}
	if bytes.Equal(storedHash, sum[:]) {
		s.logger.Debug("snapshot unchanged, skipping save",
			"scene", snap.SceneID, "version", snap.Version)
		return nil
	}

	compressed := s.enc.EncodeAll(raw, nil)
	err = sqlitex.Execute(conn, `
		INSERT INTO scenes (scene_id, snapshot, version, lamport, hash, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (scene_id) DO UPDATE SET
			snapshot = excluded.snapshot,
			version  = excluded.version,
			lamport  = excluded.lamport,
			hash     = excluded.hash,
			saved_at = excluded.saved_at
	`, &sqlitex.ExecOptions{
		Args: []any{
			snap.SceneID,
			compressed,
			int64(snap.Version),
			int64(snap.Lamport),
			sum[:],
			s.clk.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("store: save %s: %w", snap.SceneID, err)
	}

	s.logger.Info("snapshot saved", "scene", snap.SceneID,
		"version", snap.Version, "bytes", len(compressed))
	return nil
}

// Load returns the stored snapshot, with found=false for a scene that
// was never saved.
func (s *SQLite) Load(ctx context.Context, sceneID string) (collab.Snapshot, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return collab.Snapshot{}, false, err
	}
	defer s.pool.Put(conn)

	var compressed []byte
	err = sqlitex.Execute(conn, `SELECT snapshot FROM scenes WHERE scene_id = ?`, &sqlitex.ExecOptions{
		Args: []any{sceneID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			compressed = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, compressed)
			return nil
		},
	})
	if err != nil {
		return collab.Snapshot{}, false, fmt.Errorf("store: load %s: %w", sceneID, err)
	}
	if compressed == nil {
		return collab.Snapshot{}, false, nil
	}

	raw, err := s.dec.DecodeAll(compressed, nil)
	if err != nil {
		return collab.Snapshot{}, false, fmt.Errorf("store: decompress %s: %w", sceneID, err)
	}
	var snap collab.Snapshot
	if err := codec.Unmarshal(raw, &snap); err != nil {
		return collab.Snapshot{}, false, fmt.Errorf("store: decode %s: %w", sceneID, err)
	}
	return snap, true, nil
}

// Scenes lists the persisted scene ids with their stored versions,
// for the stats surface.
func (s *SQLite) Scenes(ctx context.Context) (map[string]uint64, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	scenes := make(map[string]uint64)
	err = sqlitex.Execute(conn, `SELECT scene_id, version FROM scenes`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			scenes[stmt.ColumnText(0)] = uint64(stmt.ColumnInt64(1))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: list scenes: %w", err)
	}
	return scenes, nil
}
