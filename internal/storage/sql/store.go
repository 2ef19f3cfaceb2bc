package sql

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/bcnelson/workspace-tree/internal/domain"
	"github.com/bcnelson/workspace-tree/internal/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// isUniqueViolation checks if an error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite
	if strings.Contains(errStr, "UNIQUE constraint failed") {
		return true
	}
	// PostgreSQL
	if strings.Contains(errStr, "duplicate key value violates unique constraint") {
		return true
	}
	return false
}

// wrapUniqueError converts UNIQUE violations to domain.ErrAlreadyExists.
func wrapUniqueError(err error) error {
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Store implements the storage.Storage interface using SQL.
type Store struct {
	db     *sqlx.DB
	driver string
}

// New creates a new SQL store and brings the schema up to date.
func New(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if driver == "sqlite3" {
		// One connection keeps ":memory:" databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(driver); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, driver: s.driver}, nil
}

// Tx wraps a database transaction.
type Tx struct {
	tx     *sqlx.Tx
	driver string
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Close is a no-op for transactions (they should be committed or rolled back).
func (t *Tx) Close() error {
	return nil
}

// BeginTx is not supported within a transaction.
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

// helper to get the correct database interface
type dbInterface interface {
	sqlx.ExtContext
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const nodeColumns = `id, library_id, parent_id, dom_type, res_type, name, reference, position,
	synchronized, permissions, enabled_wizards, created_at, updated_at`

// ============================================
// Nodes
// ============================================

func createNode(ctx context.Context, db dbInterface, n *domain.Entity) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO nodes (`+nodeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		n.ID, n.LibraryID, n.ParentID, n.DomType, n.ResType, n.Name, n.Reference, n.Position,
		n.Synchronized, n.Permissions, n.EnabledWizards, n.CreatedAt, n.UpdatedAt)
	return wrapUniqueError(err)
}

func (s *Store) CreateNode(ctx context.Context, node *domain.Entity) error {
	return createNode(ctx, s.db, node)
}

func (t *Tx) CreateNode(ctx context.Context, node *domain.Entity) error {
	return createNode(ctx, t.tx, node)
}

func getNode(ctx context.Context, db dbInterface, id string) (*domain.Entity, error) {
	var node domain.Entity
	err := db.GetContext(ctx, &node, `SELECT `+nodeColumns+` FROM nodes WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (s *Store) GetNode(ctx context.Context, id string) (*domain.Entity, error) {
	return getNode(ctx, s.db, id)
}

func (t *Tx) GetNode(ctx context.Context, id string) (*domain.Entity, error) {
	return getNode(ctx, t.tx, id)
}

func listChildren(ctx context.Context, db dbInterface, parentID string) ([]*domain.Entity, error) {
	var nodes []*domain.Entity
	err := db.SelectContext(ctx, &nodes,
		`SELECT `+nodeColumns+` FROM nodes WHERE parent_id = $1 ORDER BY position, id`, parentID)
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func (s *Store) ListChildren(ctx context.Context, parentID string) ([]*domain.Entity, error) {
	return listChildren(ctx, s.db, parentID)
}

func (t *Tx) ListChildren(ctx context.Context, parentID string) ([]*domain.Entity, error) {
	return listChildren(ctx, t.tx, parentID)
}

func listLibraries(ctx context.Context, db dbInterface, resType string) ([]*domain.Entity, error) {
	var nodes []*domain.Entity
	err := db.SelectContext(ctx, &nodes,
		`SELECT `+nodeColumns+` FROM nodes WHERE parent_id IS NULL AND res_type = $1 ORDER BY name`, resType)
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func (s *Store) ListLibraries(ctx context.Context, resType string) ([]*domain.Entity, error) {
	return listLibraries(ctx, s.db, resType)
}

func (t *Tx) ListLibraries(ctx context.Context, resType string) ([]*domain.Entity, error) {
	return listLibraries(ctx, t.tx, resType)
}

func countChildren(ctx context.Context, db dbInterface, parentID string) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM nodes WHERE parent_id = $1`, parentID)
	return count, err
}

func (s *Store) CountChildren(ctx context.Context, parentID string) (int, error) {
	return countChildren(ctx, s.db, parentID)
}

func (t *Tx) CountChildren(ctx context.Context, parentID string) (int, error) {
	return countChildren(ctx, t.tx, parentID)
}

func updateNode(ctx context.Context, db dbInterface, n *domain.Entity) error {
	result, err := db.ExecContext(ctx,
		`UPDATE nodes SET library_id = $1, parent_id = $2, name = $3, reference = $4, position = $5,
		 synchronized = $6, permissions = $7, enabled_wizards = $8, updated_at = $9
		 WHERE id = $10`,
		n.LibraryID, n.ParentID, n.Name, n.Reference, n.Position,
		n.Synchronized, n.Permissions, n.EnabledWizards, n.UpdatedAt, n.ID)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateNode(ctx context.Context, node *domain.Entity) error {
	return updateNode(ctx, s.db, node)
}

func (t *Tx) UpdateNode(ctx context.Context, node *domain.Entity) error {
	return updateNode(ctx, t.tx, node)
}

func deleteNode(ctx context.Context, db dbInterface, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM nodes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteNode(ctx context.Context, id string) error {
	return deleteNode(ctx, s.db, id)
}

func (t *Tx) DeleteNode(ctx context.Context, id string) error {
	return deleteNode(ctx, t.tx, id)
}

func countNodes(ctx context.Context, db dbInterface) (int, error) {
	var count int
	err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM nodes`)
	return count, err
}

func (s *Store) CountNodes(ctx context.Context) (int, error) {
	return countNodes(ctx, s.db)
}

func (t *Tx) CountNodes(ctx context.Context) (int, error) {
	return countNodes(ctx, t.tx)
}
