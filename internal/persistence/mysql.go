package persistence

import (
	"database/sql"
	"log/slog"

	"github.com/pkg/errors"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is the canonical Store adapter. It owns one sql.DB used only
// by the port worker and the cold login path.
type MySQLStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func OpenMySQL(dsn string, logger *slog.Logger) (*MySQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping mysql")
	}

	s := &MySQLStore{db: db, logger: logger}
	if err := s.ensureTables(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("database connected")
	return s, nil
}

func (s *MySQLStore) ensureTables() error {
	const schema = `CREATE TABLE IF NOT EXISTS players (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		username VARCHAR(64) NOT NULL,
		password_hash VARCHAR(128) NOT NULL DEFAULT '',
		salt VARCHAR(64) NOT NULL DEFAULT '',
		level INT NOT NULL DEFAULT 1,
		health INT NOT NULL DEFAULT 100,
		pos_x DOUBLE NOT NULL DEFAULT 0,
		pos_y DOUBLE NOT NULL DEFAULT 0,
		pos_z DOUBLE NOT NULL DEFAULT 0,
		PRIMARY KEY (id),
		UNIQUE KEY uq_players_username (username)
	)`

	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, "ensure players table")
	}
	return nil
}

func (s *MySQLStore) UpdatePosition(playerID uint64, x, y, z float64) error {
	_, err := s.db.Exec(
		"UPDATE players SET pos_x = ?, pos_y = ?, pos_z = ? WHERE id = ?",
		x, y, z, playerID)
	return errors.Wrapf(err, "update position for player %d", playerID)
}

func (s *MySQLStore) UpdateStats(playerID uint64, level, health int) error {
	_, err := s.db.Exec(
		"UPDATE players SET level = ?, health = ? WHERE id = ?",
		level, health, playerID)
	return errors.Wrapf(err, "update stats for player %d", playerID)
}

func (s *MySQLStore) GetPlayerByUsername(username string) (*PlayerRecord, bool, error) {
	row := s.db.QueryRow(
		"SELECT id, username, password_hash, salt, level, health, pos_x, pos_y, pos_z FROM players WHERE username = ?",
		username)

	var rec PlayerRecord
	err := row.Scan(&rec.ID, &rec.Username, &rec.PasswordHash, &rec.Salt,
		&rec.Level, &rec.Health, &rec.X, &rec.Y, &rec.Z)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "get player %q", username)
	}
	return &rec, true, nil
}

// CreatePlayer inserts a fresh account row and returns its id.
func (s *MySQLStore) CreatePlayer(rec *PlayerRecord) (uint64, error) {
	res, err := s.db.Exec(
		"INSERT INTO players (username, password_hash, salt, level, health, pos_x, pos_y, pos_z) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.Username, rec.PasswordHash, rec.Salt, rec.Level, rec.Health, rec.X, rec.Y, rec.Z)
	if err != nil {
		return 0, errors.Wrapf(err, "create player %q", rec.Username)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "last insert id")
	}
	return uint64(id), nil
}

func (s *MySQLStore) Close() error {
	return errors.Wrap(s.db.Close(), "close mysql")
}
