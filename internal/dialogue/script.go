// Package dialogue loads the known script and fuzzy-matches recognized text
// against it.
package dialogue

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry is one known line. IDs are positions in the source table.
type Entry struct {
	ID      int    `json:"id"`
	Speaker string `json:"name"`
	Text    string `json:"dialogue"`
}

// Script is the ordered, read-only table of known lines. It is safe to share
// between sessions.
type Script struct {
	entries []Entry
}

// NewScript assigns sequential ids to records in order.
func NewScript(records []Entry) *Script {
	entries := make([]Entry, len(records))
	for i, r := range records {
		r.ID = i
		entries[i] = r
	}
	return &Script{entries: entries}
}

// ReadScript decodes a JSON array of {"name", "dialogue"} records.
func ReadScript(r io.Reader) (*Script, error) {
	var records []Entry
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode script: %w", err)
	}
	return NewScript(records), nil
}

// LoadScript reads a script file.
func LoadScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadScript(f)
}

// Len returns the number of entries.
func (s *Script) Len() int { return len(s.entries) }

// Entries returns a copy of the table.
func (s *Script) Entries() []Entry { return append([]Entry(nil), s.entries...) }

// Get returns the entry with the given id.
func (s *Script) Get(id int) (Entry, bool) {
	if id < 0 || id >= len(s.entries) {
		return Entry{}, false
	}
	return s.entries[id], true
}

// Problem describes a questionable script record.
type Problem struct {
	ID     int
	Reason string
}

// Validate lists records that can never match or that shadow each other.
func (s *Script) Validate() []Problem {
	var out []Problem
	seen := make(map[string]int)
	for _, e := range s.entries {
		text := strings.TrimSpace(e.Text)
		switch {
		case text == "":
			out = append(out, Problem{e.ID, "empty dialogue"})
		case strings.TrimSpace(e.Speaker) == "":
			out = append(out, Problem{e.ID, "missing speaker"})
		}
		if first, dup := seen[text]; dup && text != "" {
			out = append(out, Problem{e.ID, fmt.Sprintf("duplicate of %d", first)})
		} else {
			seen[text] = e.ID
		}
	}
	return out
}
