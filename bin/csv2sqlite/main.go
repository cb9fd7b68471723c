package main

import (
	"bufio"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	// sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

// csv2sqlite bulk-loads the CSVLogger's per-iteration trans/event/interv
// files into a single SQLite database (one table per record kind, with an
// instance column), for runs made with output.logger = "csv". The layout
// differs from the SQLiteLogger's per-iteration tables.
func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "location to create the sqlite3 file (required)")
	var skipTrans bool
	flag.BoolVar(&skipTrans, "skip_trans", false, "skip transition tables")
	var skipEvent bool
	flag.BoolVar(&skipEvent, "skip_event", false, "skip event tables")
	var skipInterv bool
	flag.BoolVar(&skipInterv, "skip_interv", false, "skip intervention tables")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("CSV basepath directory was not specified")
		flag.Usage()
		os.Exit(1)
	}
	if outPath == "" {
		fmt.Println("-out was not specified")
		flag.Usage()
		os.Exit(1)
	}

	db, err := openSQLiteDBOptimized(outPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	tableNameMap := map[string]string{
		"trans":  "Transition",
		"event":  "Event",
		"interv": "Intervention",
	}
	columnNameMap := map[string]string{
		"trans":  "(id integer not null primary key, instance int, time real, hostID int, cellID int, fromState text, toState text)",
		"event":  "(id integer not null primary key, instance int, eventID int, time real, channel text, hostID int)",
		"interv": "(id integer not null primary key, instance int, actionID text, time real, name text, kind text, hostID int)",
	}
	insertStmtMap := map[string]string{
		"trans":  "insert into %s (instance, time, hostID, cellID, fromState, toState) values(?, ?, ?, ?, ?, ?)",
		"event":  "insert into %s (instance, eventID, time, channel, hostID) values(?, ?, ?, ?, ?)",
		"interv": "insert into %s (instance, actionID, time, name, kind, hostID) values(?, ?, ?, ?, ?, ?)",
	}

	splitter := regexp.MustCompile(`\s*,\s*`)
	start := time.Now()
	fileCount := 0

	for argIdx := 0; argIdx < flag.NArg(); argIdx++ {
		basePath := filepath.Clean(flag.Arg(argIdx))
		csvPaths, err := filepath.Glob(filepath.Join(basePath, "*.csv"))
		if err != nil {
			log.Fatal(err)
		}
		if len(csvPaths) == 0 {
			log.Fatalf("%s did not match any CSV files", basePath)
		}

		for _, csvPath := range csvPaths {
			_, filename := filepath.Split(csvPath)
			parts := strings.Split(filename, ".")
			contentType := parts[len(parts)-2]
			instance := parts[len(parts)-3]

			if (contentType == "trans" && skipTrans) ||
				(contentType == "event" && skipEvent) ||
				(contentType == "interv" && skipInterv) {
				continue
			}
			tableName, ok := tableNameMap[contentType]
			if !ok {
				continue
			}

			if err := newTableIfNot(db, tableName, columnNameMap[contentType]); err != nil {
				log.Fatal(err)
			}

			f, err := os.Open(csvPath)
			if err != nil {
				log.Fatal(err)
			}
			scanner := bufio.NewScanner(f)
			scanner.Scan() // skip header row

			tx, err := db.Begin()
			if err != nil {
				log.Fatal(err)
			}
			stmt, err := tx.Prepare(fmt.Sprintf(insertStmtMap[contentType], tableName))
			if err != nil {
				log.Fatal(err)
			}
			for scanner.Scan() {
				fields := splitter.Split(scanner.Text(), -1)
				values := make([]interface{}, len(fields)+1)
				values[0] = instance
				for i, v := range fields {
					values[i+1] = v
				}
				if _, err := stmt.Exec(values...); err != nil {
					log.Fatalf("%s: %v", fields, err)
				}
			}
			stmt.Close()
			tx.Commit()
			f.Close()
			fmt.Printf("%s, committed.\n", filename)
			fileCount++
		}
	}

	fmt.Printf("Finished %d files in %s.\n", fileCount, time.Since(start))
}

func newTableIfNot(db *sql.DB, tableName, cols string) error {
	sqlStmt := fmt.Sprintf("create table if not exists %s %s;", tableName, cols)
	if _, err := db.Exec(sqlStmt); err != nil {
		return fmt.Errorf("%q: %s", err, sqlStmt)
	}
	return nil
}

func openSQLiteDBOptimized(path string) (*sql.DB, error) {
	return sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal=WAL&_locking=EXCLUSIVE&_sync=NORMAL", path))
}
