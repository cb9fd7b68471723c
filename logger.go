package spatialsim

import (
	"fmt"
	"os"

	"github.com/segmentio/ksuid"
)

// DataLogger is the general definition of a logger that records
// simulation data to file, whether it writes text files or
// writes to a database.
type DataLogger interface {
	// SetBasePath sets the base path of the logger for iteration i.
	SetBasePath(path string, i int)
	// Init initializes the logger. For a CSV-backed logger, Init creates
	// the files and writes header rows; for a SQLite-backed logger, Init
	// creates the tables for this iteration.
	Init() error
	// WriteTransitions records every compartment transition a host or
	// cell makes, in order, as it happens during a run.
	WriteTransitions(c <-chan TransitionPackage)
	// WriteEvents records every event drawn by the Gillespie loop,
	// independent of the state transition(s) it produced.
	WriteEvents(c <-chan EventPackage)
	// WriteInterventions records every action an InterventionHandler
	// controller takes, continuous or discrete.
	WriteInterventions(c <-chan InterventionPackage)
}

// TransitionPackage encapsulates a single state transition of a host or
// cell, to be written by a DataLogger.WriteTransitions consumer.
type TransitionPackage struct {
	InstanceID int
	Time       float64
	HostID     int
	CellID     int
	From       State
	To         State
}

// EventPackage encapsulates a single drawn event, independent of the
// resulting state transition(s).
type EventPackage struct {
	InstanceID int
	EventID    int
	Time       float64
	Channel    string
	HostID     int
}

// InterventionPackage encapsulates a single intervention action, tagged
// with a sortable ksuid so that actions triggered in the same instant
// retain a stable, reconstructible order in the log.
type InterventionPackage struct {
	InstanceID int
	ActionID   ksuid.KSUID
	Time       float64
	Name       string
	Kind       string
	HostID     int
}

// NewFile creates a new file at the given path if it does not exist.
// Returns an error if the file already exists.
func NewFile(path string, b []byte) error {
	if exists, _ := fileExists(path); exists {
		return fmt.Errorf("%s already exists", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return err
	}
	return f.Sync()
}

// AppendToFile creates a new file at the given path if it does not exist,
// or appends to the end of the existing file if it does.
func AppendToFile(path string, b []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(b); err != nil {
		return err
	}
	return f.Sync()
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
