package sqlite3

import (
	"database/sql"
	"time"

	"github.com/ansel1/merry"
	_ "github.com/mattn/go-sqlite3"

	"github.com/p11test/p11test/report"
)

// DB is a wrapper over a sql.DB object, complying with the report
// storage interface.
type DB struct {
	*sql.DB
}

// GetStore opens (or creates) the report database at path.
func GetStore(path string) (report.Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, merry.Prepend(err, "opening report database")
	}
	return &DB{DB: db}, nil
}

// InitStorage creates the tables if they don't exist yet.
func (db *DB) InitStorage() error {
	for _, stmt := range CreateStmts {
		if _, err := db.Exec(stmt); err != nil {
			return merry.Prepend(err, "creating report tables")
		}
	}
	return nil
}

func (db *DB) SaveRun(run report.Run) error {
	stmt, err := db.Prepare(InsertRunQuery)
	if err != nil {
		return merry.Wrap(err)
	}
	defer stmt.Close()
	_, err = stmt.Exec(run.ID, run.StartedAt.Format(time.RFC3339Nano), run.Library, run.TokenLabel)
	return merry.Wrap(err)
}

func (db *DB) SaveResult(runID string, result report.Result) error {
	tx, err := db.Begin()
	if err != nil {
		return merry.Wrap(err)
	}
	var seq int
	if err := tx.QueryRow(NextSeqQuery, runID).Scan(&seq); err != nil {
		tx.Rollback()
		return merry.Wrap(err)
	}
	if _, err := tx.Exec(InsertResultQuery, runID, seq, result.Case, string(result.Status), result.Detail, result.Elapsed.Nanoseconds()); err != nil {
		tx.Rollback()
		return merry.Wrap(err)
	}
	return merry.Wrap(tx.Commit())
}

func (db *DB) Results(runID string) ([]report.Result, error) {
	rows, err := db.Query(GetResultsQuery, runID)
	if err != nil {
		return nil, merry.Wrap(err)
	}
	defer rows.Close()
	var results []report.Result
	for rows.Next() {
		var r report.Result
		var status string
		var elapsed int64
		if err := rows.Scan(&r.Case, &status, &r.Detail, &elapsed); err != nil {
			return nil, merry.Wrap(err)
		}
		r.Status = report.Status(status)
		r.Elapsed = time.Duration(elapsed)
		results = append(results, r)
	}
	return results, merry.Wrap(rows.Err())
}

func (db *DB) CloseStorage() error {
	return db.Close()
}
