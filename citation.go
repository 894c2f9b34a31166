/*
Copyright © 2024 the cesmplot authors.
This file is part of cesmplot.

cesmplot is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

cesmplot is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with cesmplot.  If not, see <http://www.gnu.org/licenses/>.
*/

package cesmplot

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// CitationEntry is the literature reference for an index.
type CitationEntry struct {
	Authors     string
	Year        int
	Title       string
	Journal     string
	DOI         string
	Description string
}

func (c CitationEntry) String() string {
	var parts []string
	if c.Authors != "" {
		parts = append(parts, c.Authors)
	}
	if c.Year != 0 {
		parts = append(parts, fmt.Sprintf("(%d)", c.Year))
	}
	s := strings.Join(parts, " ")
	if c.Title != "" {
		s += ". " + c.Title
	}
	if c.Journal != "" {
		s += ". " + c.Journal
	}
	if c.DOI != "" {
		s += ". doi:" + c.DOI
	}
	return strings.TrimPrefix(s, ". ")
}

// CitationTable holds citations by index name. It is safe for
// concurrent use.
type CitationTable struct {
	path string

	mu      sync.Mutex
	entries map[string]CitationEntry
}

// BuiltinCitations returns the citations for the built-in indices.
func BuiltinCitations() map[string]CitationEntry {
	trenberth := CitationEntry{
		Authors: "Trenberth, K. E.",
		Year:    1997,
		Title:   "The Definition of El Niño",
		Journal: "Bulletin of the American Meteorological Society",
		DOI:     "10.1175/1520-0477(1997)078<2771:TDOENO>2.0.CO;2",
	}
	o := make(map[string]CitationEntry)
	for name, desc := range map[string]string{
		"Nino1+2": "SST anomaly over the far eastern equatorial Pacific",
		"Nino3":   "SST anomaly over the eastern equatorial Pacific",
		"Nino3.4": "SST anomaly over the east-central equatorial Pacific",
		"Nino4":   "SST anomaly over the central equatorial Pacific",
	} {
		c := trenberth
		c.Description = desc
		o[name] = c
	}
	return o
}

// NewCitationTable returns a table that is persisted to path, loading
// any entries already saved there on top of the built-in citations.
// If path is empty the table is kept in memory only.
func NewCitationTable(path string) (*CitationTable, error) {
	t := &CitationTable{path: path, entries: BuiltinCitations()}
	if path == "" {
		return t, nil
	}
	b, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	} else if err != nil {
		return nil, fmt.Errorf("cesmplot: reading citation file: %v", err)
	}
	var saved map[string]CitationEntry
	if _, err := toml.Decode(string(b), &saved); err != nil {
		return nil, fmt.Errorf("cesmplot: decoding citation file %s: %v", path, err)
	}
	for k, v := range saved {
		t.entries[k] = v
	}
	return t, nil
}

// Get returns the citation for the named index.
func (t *CitationTable) Get(name string) (CitationEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.entries[name]
	return c, ok
}

// Names returns the names of the indices with citations, sorted.
func (t *CitationTable) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	o := make([]string, 0, len(t.entries))
	for k := range t.entries {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

// Set adds or replaces the citation for the named index and writes the
// table to its file. If the write fails the table is unchanged.
func (t *CitationTable) Set(name string, c CitationEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	old, had := t.entries[name]
	t.entries[name] = c
	if err := t.save(); err != nil {
		t.restore(name, old, had)
		return err
	}
	return nil
}

// Delete removes the citation for the named index and writes the
// table to its file. If the write fails the table is unchanged.
func (t *CitationTable) Delete(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	old, had := t.entries[name]
	delete(t.entries, name)
	if err := t.save(); err != nil {
		t.restore(name, old, had)
		return err
	}
	return nil
}

// restore puts back the entry for name as it was before a failed
// change. t.mu must be held.
func (t *CitationTable) restore(name string, old CitationEntry, had bool) {
	if had {
		t.entries[name] = old
	} else {
		delete(t.entries, name)
	}
}

// save writes the table. t.mu must be held.
func (t *CitationTable) save() error {
	if t.path == "" {
		return nil
	}
	var b bytes.Buffer
	if err := toml.NewEncoder(&b).Encode(t.entries); err != nil {
		return fmt.Errorf("cesmplot: encoding citations: %v", err)
	}
	if dir := filepath.Dir(t.path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("cesmplot: saving citations: %v", err)
		}
	}
	// Write to a temporary file first so a failed write leaves the
	// old table intact.
	tmp := t.path + ".tmp"
	if err := ioutil.WriteFile(tmp, b.Bytes(), 0644); err != nil {
		return fmt.Errorf("cesmplot: saving citations: %v", err)
	}
	if err := os.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("cesmplot: saving citations: %v", err)
	}
	return nil
}
