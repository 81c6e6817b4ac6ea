// Package journal persists the audit trail of completed transactions.
//
// The core contract only requires the in-memory transaction report; the
// journal retains the last runs on disk so `tunectl status` can say when
// the host was last reconciled and which backups hold pre-change artifacts.
package journal

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/halvard/tunectl/internal/txn"
)

// MaxEntries bounds the journal; older transactions are dropped on append.
const MaxEntries = 50

// Journal is the tunectl.journal file.
type Journal struct {
	Version      int     `yaml:"version"`
	Transactions []Entry `yaml:"transactions"`
}

// Entry records one completed transaction.
type Entry struct {
	ID     string       `yaml:"id"`
	Time   time.Time    `yaml:"time"`
	State  string       `yaml:"state"`
	Reason string       `yaml:"reason,omitempty"`
	Units  []UnitRecord `yaml:"units"`
}

// UnitRecord records one change unit's outcome.
type UnitRecord struct {
	ID            string `yaml:"id"`
	Backend       string `yaml:"backend"`
	Before        string `yaml:"before"`
	After         string `yaml:"after"`
	Status        string `yaml:"status"`
	Reason        string `yaml:"reason,omitempty"`
	RollbackError string `yaml:"rollback_error,omitempty"`
	BackupHash    string `yaml:"backup,omitempty"`
}

// FromResult converts a transaction result into a journal entry.
func FromResult(res *txn.Result) Entry {
	entry := Entry{
		ID:     res.ID,
		Time:   res.Finished,
		State:  string(res.State),
		Reason: res.Reason,
	}
	for _, unit := range res.Units {
		entry.Units = append(entry.Units, UnitRecord{
			ID:            unit.Setting.ID,
			Backend:       unit.Setting.Backend,
			Before:        unit.Before.String(),
			After:         unit.Desired.String(),
			Status:        string(unit.Status),
			Reason:        unit.Reason,
			RollbackError: unit.RollbackErr,
			BackupHash:    unit.BackupHash,
		})
	}
	return entry
}

// Load reads a journal file. A missing file is an empty journal, not an error.
func Load(path string) (*Journal, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Journal{Version: 1}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading journal %s: %w", path, err)
	}

	var j Journal
	if err := yaml.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parsing journal %s: %w", path, err)
	}

	if errs := Validate(&j); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return &j, nil
}

// Save writes the journal atomically using a temp file and rename.
func Save(path string, j *Journal) error {
	data, err := yaml.Marshal(j)
	if err != nil {
		return fmt.Errorf("marshaling journal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp journal %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp journal to %s: %w", path, err)
	}

	return nil
}

// Append loads the journal, appends an entry, trims to MaxEntries, and
// saves it back.
func Append(path string, entry Entry) error {
	j, err := Load(path)
	if err != nil {
		return err
	}
	j.Transactions = append(j.Transactions, entry)
	if len(j.Transactions) > MaxEntries {
		j.Transactions = j.Transactions[len(j.Transactions)-MaxEntries:]
	}
	return Save(path, j)
}

// Last returns the most recent entry, if any.
func (j *Journal) Last() (Entry, bool) {
	if len(j.Transactions) == 0 {
		return Entry{}, false
	}
	return j.Transactions[len(j.Transactions)-1], true
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("journal validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Journal for semantic correctness.
func Validate(j *Journal) []string {
	var errs []string

	if j.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported version %d: only version 1 is supported", j.Version))
	}

	for i, entry := range j.Transactions {
		prefix := fmt.Sprintf("transaction[%d]", i)
		if entry.ID != "" {
			prefix = fmt.Sprintf("transaction '%s'", entry.ID)
		}
		if entry.ID == "" {
			errs = append(errs, fmt.Sprintf("%s: 'id' is required", prefix))
		}
		if entry.State == "" {
			errs = append(errs, fmt.Sprintf("%s: 'state' is required", prefix))
		}
	}

	return errs
}
