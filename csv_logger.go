package spatialsim

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// CSVLogger is a DataLogger that writes simulation data as comma-delimited
// files, one set per iteration.
type CSVLogger struct {
	transitionPath   string
	eventPath        string
	interventionPath string
}

// NewCSVLogger creates a new logger that writes data into CSV files rooted
// at basepath, tagged with iteration number i.
func NewCSVLogger(basepath string, i int) *CSVLogger {
	l := new(CSVLogger)
	l.SetBasePath(basepath, i)
	return l
}

// SetBasePath sets the base path of the logger.
func (l *CSVLogger) SetBasePath(basepath string, i int) {
	if info, err := os.Stat(basepath); err == nil && info.IsDir() {
		basepath += "log"
	}
	trimmed := strings.TrimSuffix(basepath, ".")
	l.transitionPath = trimmed + fmt.Sprintf(".%03d.%s.csv", i, "trans")
	l.eventPath = trimmed + fmt.Sprintf(".%03d.%s.csv", i, "event")
	l.interventionPath = trimmed + fmt.Sprintf(".%03d.%s.csv", i, "interv")
}

// Init creates the CSV files and writes header rows.
func (l *CSVLogger) Init() error {
	newFile := func(path, header string) error {
		var b bytes.Buffer
		b.WriteString(header)
		return NewFile(path, b.Bytes())
	}

	if err := newFile(l.transitionPath, "time,hostID,cellID,fromState,toState\n"); err != nil {
		return err
	}
	if err := newFile(l.eventPath, "eventID,time,channel,hostID\n"); err != nil {
		return err
	}
	if err := newFile(l.interventionPath, "actionID,time,name,kind,hostID\n"); err != nil {
		return err
	}
	return nil
}

// WriteTransitions records every state transition to the transitions file.
func (l *CSVLogger) WriteTransitions(c <-chan TransitionPackage) {
	const template = "%f,%d,%d,%s,%s\n"
	var b bytes.Buffer
	for pack := range c {
		b.WriteString(fmt.Sprintf(template, pack.Time, pack.HostID, pack.CellID, pack.From, pack.To))
	}
	AppendToFile(l.transitionPath, b.Bytes())
}

// WriteEvents records every drawn event to the events file.
func (l *CSVLogger) WriteEvents(c <-chan EventPackage) {
	const template = "%d,%f,%s,%d\n"
	var b bytes.Buffer
	for pack := range c {
		b.WriteString(fmt.Sprintf(template, pack.EventID, pack.Time, pack.Channel, pack.HostID))
	}
	AppendToFile(l.eventPath, b.Bytes())
}

// WriteInterventions records every intervention action to the interventions
// file.
func (l *CSVLogger) WriteInterventions(c <-chan InterventionPackage) {
	const template = "%s,%f,%s,%s,%d\n"
	var b bytes.Buffer
	for pack := range c {
		b.WriteString(fmt.Sprintf(template, pack.ActionID.String(), pack.Time, pack.Name, pack.Kind, pack.HostID))
	}
	AppendToFile(l.interventionPath, b.Bytes())
}
