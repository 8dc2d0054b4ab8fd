package bookmark

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/5amCurfew/tap-pagerduty/models"
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

const table = "tap_pagerduty_bookmarks"

type dialect struct {
	driver      string
	placeholder func(n int) string
	createTable string
}

var columns = `(
	stream_id VARCHAR(255) NOT NULL,
	replication_key VARCHAR(255) NOT NULL,
	value VARCHAR(255) NOT NULL,
	PRIMARY KEY (stream_id, replication_key)
)`

var (
	postgres = dialect{
		driver:      "postgres",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		createTable: "CREATE TABLE IF NOT EXISTS " + table + " " + columns,
	}
	mysql = dialect{
		driver:      "mysql",
		placeholder: func(int) string { return "?" },
		createTable: "CREATE TABLE IF NOT EXISTS " + table + " " + columns,
	}
	sqlite = dialect{
		driver:      "sqlite3",
		placeholder: func(int) string { return "?" },
		createTable: "CREATE TABLE IF NOT EXISTS " + table + " " + columns,
	}
	sqlserver = dialect{
		driver:      "sqlserver",
		placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
		createTable: "IF OBJECT_ID(N'" + table + "', N'U') IS NULL CREATE TABLE " + table + " " + columns,
	}
)

// DBStore keeps bookmarks as rows of one table
type DBStore struct {
	db      *sql.DB
	dialect dialect
}

// OpenDB connects to url and creates the bookmarks table if needed.
// Supported schemes: postgres, postgresql, mysql, sqlite, file, sqlserver.
// SQLite urls follow the sqlite:///relative.db, sqlite:////absolute.db form.
func OpenDB(ctx context.Context, url string) (*DBStore, error) {
	d, address, err := parseDatabaseURL(url)
	if err != nil {
		return nil, fmt.Errorf("unsupported state database url: %w", err)
	}

	db, err := sql.Open(d.driver, address)
	if err != nil {
		return nil, fmt.Errorf("error connecting to state database: %w", err)
	}

	if _, err := db.ExecContext(ctx, d.createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating %s: %w", table, err)
	}

	log.WithFields(log.Fields{"driver": d.driver}).Info("using database state store")
	return &DBStore{db: db, dialect: d}, nil
}

func parseDatabaseURL(url string) (dialect, string, error) {
	splitUrl := strings.SplitN(url, "://", 2)
	if len(splitUrl) != 2 {
		return dialect{}, "", fmt.Errorf("invalid db URL: %s", url)
	}

	dbType, rest := splitUrl[0], splitUrl[1]
	switch dbType {
	case "postgres", "postgresql":
		return postgres, url, nil
	case "mysql":
		return mysql, rest, nil
	case "sqlite", "file":
		return sqlite, strings.TrimPrefix(rest, "/"), nil
	case "sqlserver":
		return sqlserver, url, nil
	default:
		return dialect{}, "", fmt.Errorf("unsupported database type: %s", dbType)
	}
}

func (s *DBStore) Load(ctx context.Context) (*models.State, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT stream_id, replication_key, value FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("error reading bookmarks: %w", err)
	}
	defer rows.Close()

	state := models.NewState()
	for rows.Next() {
		var stream, key, value string
		if err := rows.Scan(&stream, &key, &value); err != nil {
			return nil, fmt.Errorf("error scanning bookmark row: %w", err)
		}
		state.SetBookmark(stream, key, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading bookmarks: %w", err)
	}
	return state, nil
}

// Save replaces every stored bookmark with state in one transaction
func (s *DBStore) Save(ctx context.Context, state *models.State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting bookmark transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("error clearing bookmarks: %w", err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (stream_id, replication_key, value) VALUES (%s, %s, %s)",
		table, s.dialect.placeholder(1), s.dialect.placeholder(2), s.dialect.placeholder(3))

	for stream, keys := range state.Snapshot() {
		for key, value := range keys {
			if value == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, insert, stream, key, value); err != nil {
				return fmt.Errorf("error writing bookmark %s.%s: %w", stream, key, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing bookmarks: %w", err)
	}
	return nil
}

func (s *DBStore) Close() error {
	return s.db.Close()
}
