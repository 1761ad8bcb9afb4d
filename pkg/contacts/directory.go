package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Store persists directory entries across restarts. Implementations must be
// safe for concurrent use.
type Store interface {
	// Save inserts or updates one entry, keyed by name.
	Save(ctx context.Context, entry Entry) error

	// Load returns every stored entry.
	Load(ctx context.Context) ([]Entry, error)

	// Delete removes an entry by name. Deleting a missing entry is not
	// an error.
	Delete(ctx context.Context, name string) error

	// Close releases store resources.
	Close() error
}

// Directory is the in-memory contact book, optionally backed by a Store.
type Directory struct {
	logger *slog.Logger
	store  Store

	mu      sync.RWMutex
	entries map[string]Entry // keyed by lowercased name
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithStore attaches persistence. Entries already in the store are loaded
// by NewDirectory; mutations are written through.
func WithStore(store Store) DirectoryOption {
	return func(d *Directory) { d.store = store }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) DirectoryOption {
	return func(d *Directory) { d.logger = logger }
}

// DefaultEntries returns the contact book the assistant starts with when no
// store is attached or the store is empty.
func DefaultEntries() []Entry {
	return []Entry{
		{Name: "Wesley", Number: "+15551230001", Relationship: "son", RequiresConsent: false, Priority: PriorityPrimary},
		{Name: "Susan", Number: "+15551230002", Relationship: "daughter", RequiresConsent: false, Priority: PrioritySecondary},
		{Name: "Michael", Number: "+15551230003", Relationship: "grandson", RequiresConsent: true},
		{Name: "Patricia", Number: "+15551230004", Relationship: "friend", RequiresConsent: true},
		{Name: "Dr. Stevens", Number: "+15551230005", Relationship: "family doctor", RequiresConsent: false, Priority: PriorityDoctor},
		{Name: "Front Desk", Number: "+15551230006", Relationship: "facility front desk", RequiresConsent: false},
	}
}

// NewDirectory creates a directory seeded with the given entries. With a
// store attached, stored entries take precedence over the seed.
func NewDirectory(ctx context.Context, seed []Entry, opts ...DirectoryOption) (*Directory, error) {
	d := &Directory{
		logger:  slog.Default(),
		entries: make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "contacts")

	for _, e := range seed {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("seed contact %q: %w", e.Name, err)
		}
		d.entries[strings.ToLower(e.Name)] = e
	}

	if d.store != nil {
		stored, err := d.store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load contacts: %w", err)
		}
		for _, e := range stored {
			d.entries[strings.ToLower(e.Name)] = e
		}
		d.logger.Info("contact directory loaded",
			"stored", len(stored),
			"total", len(d.entries),
		)
	}

	return d, nil
}

// Add inserts or replaces a contact. The number must be in international
// format.
func (d *Directory) Add(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	d.entries[strings.ToLower(entry.Name)] = entry
	d.mu.Unlock()

	if d.store != nil {
		if err := d.store.Save(ctx, entry); err != nil {
			return fmt.Errorf("persist contact: %w", err)
		}
	}

	d.logger.Info("contact saved",
		"name", entry.Name,
		"priority", entry.Priority.String(),
		"requires_consent", entry.RequiresConsent,
	)
	return nil
}

// Remove deletes a contact by name.
func (d *Directory) Remove(ctx context.Context, name string) error {
	key := strings.ToLower(strings.TrimSpace(name))

	d.mu.Lock()
	_, ok := d.entries[key]
	delete(d.entries, key)
	d.mu.Unlock()

	if !ok {
		return ErrUnknownContact
	}
	if d.store != nil {
		if err := d.store.Delete(ctx, name); err != nil {
			return fmt.Errorf("delete contact: %w", err)
		}
	}
	return nil
}

// Lookup finds a contact by name, case-insensitively. Partial prefix
// matches are accepted when unambiguous, so "call sue" can reach "Susan".
func (d *Directory) Lookup(name string) (Entry, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Entry{}, ErrUnknownContact
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if e, ok := d.entries[key]; ok {
		return e, nil
	}

	var match Entry
	var found int
	for stored, e := range d.entries {
		if strings.HasPrefix(stored, key) {
			match = e
			found++
		}
	}
	if found == 1 {
		return match, nil
	}
	return Entry{}, ErrUnknownContact
}

// List returns every contact sorted by name, with numbers masked. The
// directory is read back to the resident, so raw numbers stay private.
func (d *Directory) List() []Entry {
	d.mu.RLock()
	out := make([]Entry, 0, len(d.entries))
	for _, e := range d.entries {
		e.Number = MaskNumber(e.Number)
		out = append(out, e)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EmergencyChain returns the emergency contacts in priority order.
func (d *Directory) EmergencyChain() []Entry {
	d.mu.RLock()
	var out []Entry
	for _, e := range d.entries {
		if e.Priority != PriorityNone {
			out = append(out, e)
		}
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// Primary returns the first contact in the emergency chain.
func (d *Directory) Primary() (Entry, error) {
	chain := d.EmergencyChain()
	if len(chain) == 0 {
		return Entry{}, ErrUnknownContact
	}
	return chain[0], nil
}
