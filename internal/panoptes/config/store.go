package config

import (
	"sync"

	"github.com/samber/oops"
)

// Store holds the live configuration. It is written once by Init and then
// patched through PatchTableRules and PatchOperationRules; reads return copies.
type Store struct {
	mu          sync.RWMutex
	cfg         Config
	initialized bool
}

func NewStore() *Store {
	return &Store{cfg: Defaults()}
}

// Init merges cfg over the defaults, validates and stores the result. A
// second call fails and leaves the stored configuration unchanged.
//
// Zero values mean "use the default": an empty AppName or Environment, a nil
// Transports.Enabled or a zero HTTP timeout take the value from Defaults
// rather than failing validation. Validation applies to the merged result.
func (s *Store) Init(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return oops.Code(CodeAlreadyInitialized).
			Errorf("Init has already been called; configuration cannot be initialized twice")
	}

	merged := Merge(Defaults(), cfg)
	if err := merged.Validate(); err != nil {
		return err
	}
	s.cfg = merged
	s.initialized = true
	return nil
}

// Get returns an isolated copy of the configuration and whether Init succeeded.
func (s *Store) Get() (Config, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone(), s.initialized
}

func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// PatchTableRules adds new table entries and fully replaces existing ones.
func (s *Store) PatchTableRules(rules map[string]TableRules) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return oops.Code(CodeNotInitialized).
			Errorf("cannot set table rules before Init")
	}
	for name, rule := range rules {
		if err := rule.validate(name); err != nil {
			return err
		}
	}
	for name, rule := range rules {
		s.cfg.TableRules[name] = rule.clone()
	}
	return nil
}

// PatchOperationRules overrides every non-nil field of rules.
func (s *Store) PatchOperationRules(rules OperationRules) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return oops.Code(CodeNotInitialized).
			Errorf("cannot set operation rules before Init")
	}
	s.cfg.OperationRules = s.cfg.OperationRules.patch(rules)
	return nil
}
