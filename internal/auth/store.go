package auth

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Record is the identity store's answer to a lookup. Secret columns
// (hashed_password, refresh_token) never appear here.
type Record struct {
	ID   string
	Name string
}

// Store resolves a user id to a record. A nil record with a nil error means
// the id is unknown.
type Store interface {
	FindByID(ctx context.Context, id string) (*Record, error)
}

// UserStorage manages user accounts in SQLite.
type UserStorage struct {
	db *sql.DB
}

// NewUserStorage connects to SQLite and initializes the users table.
func NewUserStorage(dbPath string) (*UserStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS users (
		"id" TEXT NOT NULL PRIMARY KEY,
		"name" TEXT NOT NULL,
		"hashed_password" BLOB NOT NULL,
		"refresh_token" TEXT);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create users table")
	}

	return &UserStorage{db: db}, nil
}

// CreateUser hashes the password and stores a new user.
func (s *UserStorage) CreateUser(id, name, password string) error {
	if id == "" || name == "" || password == "" {
		return errors.New("id, name and password cannot be empty")
	}

	if len(password) < 6 {
		return errors.New("password must be at least 6 characters")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	insertSQL := `INSERT INTO users (id, name, hashed_password) VALUES (?, ?, ?)`
	if _, err := s.db.Exec(insertSQL, id, name, hashedPassword); err != nil {
		return errors.New("user already exists")
	}

	return nil
}

// VerifyUser checks id and password, returns nil if valid.
func (s *UserStorage) VerifyUser(id, password string) error {
	querySQL := `SELECT hashed_password FROM users WHERE id = ?`
	var hashedPassword []byte

	err := s.db.QueryRow(querySQL, id).Scan(&hashedPassword)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.New("invalid user or password")
		}
		return err
	}

	if bcrypt.CompareHashAndPassword(hashedPassword, []byte(password)) != nil {
		return errors.New("invalid user or password")
	}

	return nil
}

// FindByID looks up a user record. Only id and name are selected; the secret
// columns stay inside the store.
func (s *UserStorage) FindByID(ctx context.Context, id string) (*Record, error) {
	querySQL := `SELECT id, name FROM users WHERE id = ?`
	var rec Record

	err := s.db.QueryRowContext(ctx, querySQL, id).Scan(&rec.ID, &rec.Name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Close releases the underlying database handle.
func (s *UserStorage) Close() error {
	return s.db.Close()
}
