package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
)

// CurseList provides the banned term list used by the curse detector.
// Terms are loaded from a plain text file with one lowercase term per line.
// Blank lines and lines starting with '#' are skipped.
//
// The list reloads on demand and fails open: if the file cannot be read,
// Terms returns an empty slice so the detector reports no matches instead
// of blocking messages.
type CurseList struct {
	path  string
	terms []string
	mu    sync.RWMutex
}

// NewCurseList creates a curse list source for the given file path and
// attempts an initial load. The returned error is informational only; the
// list is still usable and empty.
func NewCurseList(path string) (*CurseList, error) {
	c := &CurseList{path: path}
	err := c.Reload()
	return c, err
}

// Terms returns a snapshot of the current banned terms.
func (c *CurseList) Terms() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.terms
}

// Reload re-reads the term list from disk. On read error the previous
// terms are discarded and the list becomes empty.
func (c *CurseList) Reload() error {
	terms, err := readTermFile(c.path)

	c.mu.Lock()
	c.terms = terms
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to load curse list: %w", err)
	}
	return nil
}

// readTermFile parses the term file, lowercasing and deduplicating entries.
func readTermFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var terms []string
	seen := make(map[string]struct{})

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		term := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if term == "" || strings.HasPrefix(term, "#") {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return terms, nil
}
