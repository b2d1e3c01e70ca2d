package filestore

import (
	"bufio"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// JournalOp is the kind of mutation a journal entry records.
type JournalOp string

const (
	OpPut      JournalOp = "put"
	OpDelete   JournalOp = "delete"
	OpSnapshot JournalOp = "snapshot"
)

// JournalEntry is one append-only journal line (spec §4.5: "every mutation
// is journaled before the catalog is updated, so a crash between the two
// can always be replayed"). A snapshot entry (spec §4.10 compaction step 4)
// replaces every prior entry: replay can stop scanning once it reaches one.
type JournalEntry struct {
	Op          JournalOp `json:"op"`
	ID          string    `json:"id,omitempty"`
	ContentHash string    `json:"contentHash,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Journal appends entries to an ndjson file, fsyncing after every write so
// a crash never loses an acknowledged mutation.
type Journal struct {
	path string
}

// OpenJournal opens (creating if absent) the journal file at path for
// appending.
func OpenJournal(path string) *Journal {
	return &Journal{path: path}
}

// Append writes one entry and fsyncs before returning.
func (j *Journal) Append(entry JournalEntry) error {
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := jsonAPI.Marshal(entry)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return err
	}
	return f.Sync()
}

// Snapshot truncates the journal to a single {snapshot:true} marker entry,
// so replay after a clean compaction has nothing stale to scan past (spec
// §4.10 compaction step 4).
func (j *Journal) Snapshot(ts time.Time) error {
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line, err := jsonAPI.Marshal(JournalEntry{Op: OpSnapshot, Timestamp: ts})
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return err
	}
	return f.Sync()
}

// Replay reads every entry in the journal in order, oldest first.
func Replay(path string) ([]JournalEntry, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []JournalEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry JournalEntry
		if err := jsonAPI.Unmarshal(line, &entry); err != nil {
			// A partially-written final line from a crash mid-append is
			// dropped rather than treated as a fatal error; every prior
			// line is still a complete, fsynced record.
			break
		}
		entries = append(entries, entry)
	}
	return entries, scanner.Err()
}
