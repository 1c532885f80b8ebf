// Package mapping persists user-defined associations from a taskbar display
// name to candidate process executable names.
package mapping

import (
	"fmt"
	"log/slog"
	"strings"
)

const (
	keySeparator     = "|"
	processSeparator = ";"
)

// Settings is the persistence surface for encoded mapping strings. The
// production implementation is backed by the config file.
type Settings interface {
	ManualMappings() []string
	SetManualMappings([]string) error
}

// Entry is one decoded mapping: a display name and its ordered candidate
// process list.
type Entry struct {
	Name      string
	Processes []string
}

// Mappings is a decoded mapping set with case-insensitive name identity.
type Mappings struct {
	entries map[string]Entry
	order   []string
}

// Lookup returns the candidate process list for a display name.
func (m Mappings) Lookup(name string) ([]string, bool) {
	entry, ok := m.entries[normalizeKey(name)]
	if !ok {
		return nil, false
	}
	return entry.Processes, true
}

// Entries returns decoded entries in stable load order.
func (m Mappings) Entries() []Entry {
	out := make([]Entry, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.entries[key])
	}
	return out
}

// Len returns the number of mapped display names.
func (m Mappings) Len() int {
	return len(m.entries)
}

// Store reads and writes manual mappings through a Settings backend.
type Store struct {
	settings Settings
	logger   *slog.Logger
}

// NewStore builds a Store. A nil logger disables store logging.
func NewStore(settings Settings, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{settings: settings, logger: logger}
}

// Load parses all persisted mapping entries. Malformed entries are skipped,
// never fatal.
func (s *Store) Load() Mappings {
	mappings := Mappings{entries: map[string]Entry{}}
	for _, encoded := range s.settings.ManualMappings() {
		entry, ok := decodeEntry(encoded)
		if !ok {
			s.logger.Warn("skipping malformed mapping entry", "entry", encoded)
			continue
		}
		key := normalizeKey(entry.Name)
		if _, seen := mappings.entries[key]; !seen {
			mappings.order = append(mappings.order, key)
		}
		mappings.entries[key] = entry
	}
	return mappings
}

// SaveOrUpdate merges one (display name, process name) pair into the store.
// It returns true when the pair is stored or already present, false on blank
// or reserved-character input and on persistence failure.
//
// The encoding reserves '|' and ';' with no escape mechanism, so names
// containing either are rejected outright rather than written and silently
// lost on the next load.
func (s *Store) SaveOrUpdate(uiName, processName string) bool {
	uiName = strings.TrimSpace(uiName)
	processName = strings.TrimSpace(processName)
	if uiName == "" || processName == "" {
		return false
	}
	if containsReserved(uiName) || containsReserved(processName) {
		s.logger.Warn("rejecting mapping with reserved separator", "name", uiName, "process", processName)
		return false
	}

	mappings := s.Load()
	key := normalizeKey(uiName)

	entry, exists := mappings.entries[key]
	if !exists {
		mappings.entries[key] = Entry{Name: uiName, Processes: []string{processName}}
		mappings.order = append(mappings.order, key)
	} else {
		if containsFold(entry.Processes, processName) {
			return true
		}
		entry.Processes = append(entry.Processes, processName)
		mappings.entries[key] = entry
	}

	if err := s.settings.SetManualMappings(encodeAll(mappings)); err != nil {
		s.logger.Error("persist mappings failed", "error", err.Error())
		return false
	}
	return true
}

func encodeAll(mappings Mappings) []string {
	encoded := make([]string, 0, len(mappings.order))
	for _, entry := range mappings.Entries() {
		if len(entry.Processes) == 0 {
			continue
		}
		encoded = append(encoded, fmt.Sprintf("%s%s%s",
			entry.Name, keySeparator, strings.Join(entry.Processes, processSeparator)))
	}
	return encoded
}

func decodeEntry(encoded string) (Entry, bool) {
	if strings.TrimSpace(encoded) == "" {
		return Entry{}, false
	}

	parts := strings.Split(encoded, keySeparator)
	if len(parts) != 2 {
		return Entry{}, false
	}
	name := strings.TrimSpace(parts[0])
	if name == "" || strings.TrimSpace(parts[1]) == "" {
		return Entry{}, false
	}

	var processes []string
	for _, raw := range strings.Split(parts[1], processSeparator) {
		process := strings.TrimSpace(raw)
		if process == "" || containsFold(processes, process) {
			continue
		}
		processes = append(processes, process)
	}
	if len(processes) == 0 {
		return Entry{}, false
	}
	return Entry{Name: name, Processes: processes}, true
}

func containsReserved(name string) bool {
	return strings.ContainsAny(name, keySeparator+processSeparator)
}

func containsFold(list []string, target string) bool {
	for _, item := range list {
		if strings.EqualFold(item, target) {
			return true
		}
	}
	return false
}

func normalizeKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
