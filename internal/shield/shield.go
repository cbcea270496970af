// Package shield abstracts the platform restriction surface. The daemon only
// decides when apps should be blocked; how blocking happens is behind the
// Gateway interface so platforms and tests can swap implementations.
package shield

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/owenwright/cookies/internal/kv"
)

// Selection names the apps, categories, and web domains under restriction.
type Selection struct {
	Apps       []string `json:"apps"`
	Categories []string `json:"categories"`
	WebDomains []string `json:"web_domains"`
}

func (s Selection) IsEmpty() bool {
	return len(s.Apps) == 0 && len(s.Categories) == 0 && len(s.WebDomains) == 0
}

// Gateway applies or lifts restrictions for a selection.
type Gateway interface {
	// Apply enforces the selection. blocked=true blocks the selection,
	// blocked=false lifts it while keeping the selection loaded.
	Apply(sel Selection, blocked bool) error
	// Clear removes all restrictions and forgets the selection.
	Clear() error
}

// LogGateway is the default Gateway on hosts with no enforcement hook. It
// records what would have happened.
type LogGateway struct {
	logger *slog.Logger
}

func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{logger: logger.With("component", "shield")}
}

func (g *LogGateway) Apply(sel Selection, blocked bool) error {
	g.logger.Info("shield applied",
		"blocked", blocked,
		"apps", len(sel.Apps),
		"categories", len(sel.Categories),
		"web_domains", len(sel.WebDomains))
	return nil
}

func (g *LogGateway) Clear() error {
	g.logger.Info("shield cleared")
	return nil
}

// RecordingGateway captures calls for tests.
type RecordingGateway struct {
	mu      sync.Mutex
	Applies []AppliedCall
	Clears  int
}

type AppliedCall struct {
	Selection Selection
	Blocked   bool
}

func (g *RecordingGateway) Apply(sel Selection, blocked bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Applies = append(g.Applies, AppliedCall{Selection: sel, Blocked: blocked})
	return nil
}

func (g *RecordingGateway) Clear() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Clears++
	return nil
}

// SaveSelection persists the selection to the shared state file so every
// execution context enforces the same set.
func SaveSelection(store *kv.Store, sel Selection) error {
	data, err := json.Marshal(sel)
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}
	return store.Set(kv.KeySelection, string(data))
}

// LoadSelection reads the persisted selection; absent means empty.
func LoadSelection(store *kv.Store) (Selection, error) {
	raw, ok, err := store.Get(kv.KeySelection)
	if err != nil {
		return Selection{}, err
	}
	if !ok || raw == "" {
		return Selection{}, nil
	}
	var sel Selection
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		return Selection{}, fmt.Errorf("decode selection: %w", err)
	}
	return sel, nil
}
