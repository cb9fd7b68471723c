package spatialsim

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	// sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLogger is a DataLogger that writes simulation data to SQLite
// databases, one independent database per table, tagged with the
// iteration number.
type SQLiteLogger struct {
	transitionPath   string
	eventPath        string
	interventionPath string
	instanceID       int
}

// NewSQLiteLogger creates a new logger that writes to SQLite databases
// rooted at basepath, tagged with iteration number i.
func NewSQLiteLogger(basepath string, i int) *SQLiteLogger {
	l := new(SQLiteLogger)
	l.SetBasePath(basepath, i)
	return l
}

// SetBasePath sets the base path of the logger.
func (l *SQLiteLogger) SetBasePath(basepath string, i int) {
	if info, err := os.Stat(basepath); err == nil && info.IsDir() {
		basepath += fmt.Sprintf("log.%03d", i)
	}
	trimmed := strings.TrimSuffix(basepath, ".")
	l.transitionPath = trimmed + fmt.Sprintf(".%s.db", "trans")
	l.eventPath = trimmed + fmt.Sprintf(".%s.db", "event")
	l.interventionPath = trimmed + fmt.Sprintf(".%s.db", "interv")
	l.instanceID = i
}

// Init creates new tables for this iteration in each database.
func (l *SQLiteLogger) Init() error {
	newTable := func(path, tableName, cols string) error {
		db, err := OpenSQLiteDBOptimized(path)
		if err != nil {
			return err
		}
		defer db.Close()
		fullTableName := fmt.Sprintf("%s%03d", tableName, l.instanceID)
		sqlStmt := fmt.Sprintf("create table %s %s;", fullTableName, cols)
		if _, err := db.Exec(sqlStmt); err != nil {
			return fmt.Errorf("%q: %s", err, sqlStmt)
		}
		return nil
	}

	if err := newTable(l.transitionPath, "Transition",
		"(id integer not null primary key, time real, hostID int, cellID int, fromState text, toState text)"); err != nil {
		return err
	}
	if err := newTable(l.eventPath, "Event",
		"(id integer not null primary key, eventID int, time real, channel text, hostID int)"); err != nil {
		return err
	}
	if err := newTable(l.interventionPath, "Intervention",
		"(id integer not null primary key, actionID text, time real, name text, kind text, hostID int)"); err != nil {
		return err
	}
	return nil
}

// WriteTransitions records every state transition to the transitions table.
func (l *SQLiteLogger) WriteTransitions(c <-chan TransitionPackage) {
	tableName := fmt.Sprintf("Transition%03d", l.instanceID)
	stmtText := "insert into " + tableName + "(time, hostID, cellID, fromState, toState) values(?, ?, ?, ?, ?)"
	db, err := OpenSQLiteDBOptimized(l.transitionPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	tx, err := db.Begin()
	if err != nil {
		log.Fatal(err)
	}
	stmt, err := tx.Prepare(stmtText)
	if err != nil {
		log.Fatal(err)
	}
	defer stmt.Close()
	for pack := range c {
		if _, err := stmt.Exec(pack.Time, pack.HostID, pack.CellID, pack.From.String(), pack.To.String()); err != nil {
			log.Fatal(err)
		}
	}
	tx.Commit()
}

// WriteEvents records every drawn event to the events table.
func (l *SQLiteLogger) WriteEvents(c <-chan EventPackage) {
	tableName := fmt.Sprintf("Event%03d", l.instanceID)
	stmtText := "insert into " + tableName + "(eventID, time, channel, hostID) values(?, ?, ?, ?)"
	db, err := OpenSQLiteDBOptimized(l.eventPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	tx, err := db.Begin()
	if err != nil {
		log.Fatal(err)
	}
	stmt, err := tx.Prepare(stmtText)
	if err != nil {
		log.Fatal(err)
	}
	defer stmt.Close()
	for pack := range c {
		if _, err := stmt.Exec(pack.EventID, pack.Time, pack.Channel, pack.HostID); err != nil {
			log.Fatal(err)
		}
	}
	tx.Commit()
}

// WriteInterventions records every intervention action to the
// interventions table.
func (l *SQLiteLogger) WriteInterventions(c <-chan InterventionPackage) {
	tableName := fmt.Sprintf("Intervention%03d", l.instanceID)
	stmtText := "insert into " + tableName + "(actionID, time, name, kind, hostID) values(?, ?, ?, ?, ?)"
	db, err := OpenSQLiteDBOptimized(l.interventionPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	tx, err := db.Begin()
	if err != nil {
		log.Fatal(err)
	}
	stmt, err := tx.Prepare(stmtText)
	if err != nil {
		log.Fatal(err)
	}
	defer stmt.Close()
	for pack := range c {
		if _, err := stmt.Exec(pack.ActionID.String(), pack.Time, pack.Name, pack.Kind, pack.HostID); err != nil {
			log.Fatal(err)
		}
	}
	tx.Commit()
}

// OpenSQLiteDBOptimized establishes a database connection using WAL
// and exclusive locking, tuned for single-writer append workloads.
func OpenSQLiteDBOptimized(path string) (*sql.DB, error) {
	return OpenSQLiteDB(path, "?_journal=WAL&_locking=EXCLUSIVE&_sync=NORMAL")
}

// OpenSQLiteDB establishes a database connection using the given
// connection string suffix.
func OpenSQLiteDB(path, connectionString string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s%s", path, connectionString))
	if err != nil {
		return nil, err
	}
	return db, nil
}
