package scraper

import (
	"io"
	"sort"
	"strings"
	"sync"

	"sjsage522/grocerydeals/logger"
	apperrors "sjsage522/grocerydeals/pkg/errors"
)

// Chain identifies a scraper strategy
type Chain int

const (
	ChainUnknown Chain = iota
	ChainKroger
	ChainWalmart
	ChainWeeklyAd
)

func (c Chain) String() string {
	switch c {
	case ChainKroger:
		return "kroger"
	case ChainWalmart:
		return "walmart"
	case ChainWeeklyAd:
		return "weekly_ad"
	default:
		return "unknown"
	}
}

// Constructor builds a scraper bound to one store
type Constructor func(cfg StoreConfig, opts ...Option) (Scraper, error)

// Registry maps chain names to strategies and memoizes one scraper per
// store id.
type Registry struct {
	mu           sync.Mutex
	constructors map[Chain]Constructor
	aliases      map[string]Chain
	scrapers     map[int]Scraper
	opts         []Option
	log          *logger.Logger
}

// NewRegistry creates an empty registry. opts are applied to every scraper
// it builds.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		constructors: make(map[Chain]Constructor),
		aliases:      make(map[string]Chain),
		scrapers:     make(map[int]Scraper),
		opts:         opts,
		log:          logger.ForRegistry(),
	}
}

// NewDefaultRegistry creates a registry with the built-in strategies
func NewDefaultRegistry(opts ...Option) *Registry {
	r := NewRegistry(opts...)
	r.Register(ChainKroger, NewKrogerScraper, "kroger", "king soopers", "ralphs", "fred meyer", "smiths")
	r.Register(ChainWalmart, NewWalmartScraper, "walmart", "walmart supercenter")
	r.Register(ChainWeeklyAd, NewWeeklyAdScraper, "weekly ad", "weeklyad", "circular")
	return r
}

// Register binds a chain to its constructor and the store names that select it
func (r *Registry) Register(chain Chain, ctor Constructor, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.constructors[chain] = ctor
	for _, alias := range aliases {
		r.aliases[normalizeAlias(alias)] = chain
	}
}

// Resolve returns the chain registered for a store name, case-insensitively
func (r *Registry) Resolve(name string) (Chain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(name)
}

func (r *Registry) resolveLocked(name string) (Chain, error) {
	chain, ok := r.aliases[normalizeAlias(name)]
	if !ok {
		return ChainUnknown, apperrors.NewUnsupportedStore(name)
	}
	if _, ok := r.constructors[chain]; !ok {
		return ChainUnknown, apperrors.NewUnsupportedStore(name)
	}
	return chain, nil
}

// GetScraper returns the scraper memoized for cfg.ID, building it on first
// use. Unsupported names fail before any network activity.
func (r *Registry) GetScraper(cfg StoreConfig) (Scraper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.scrapers[cfg.ID]; ok {
		return s, nil
	}

	chain, err := r.resolveLocked(cfg.Name)
	if err != nil {
		return nil, err
	}

	s, err := r.constructors[chain](cfg, r.opts...)
	if err != nil {
		return nil, err
	}

	r.scrapers[cfg.ID] = s
	r.log.Debug().
		Int("store_id", cfg.ID).
		Str("store", cfg.Name).
		Str("chain", chain.String()).
		Msg("Created scraper")
	return s, nil
}

// ClearScrapers drops every memoized scraper
func (r *Registry) ClearScrapers() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, s := range r.scrapers {
		if c, ok := s.(io.Closer); ok {
			c.Close()
		}
		delete(r.scrapers, id)
	}
}

// Len returns the number of memoized scrapers
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scrapers)
}

// Aliases returns every registered store name, sorted
func (r *Registry) Aliases() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.aliases))
	for name := range r.aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeAlias(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
