// Package rules loads the three rule documents behind the gates — tool
// policies, network egress rules, and secret patterns — into an immutable
// compiled snapshot. Loading is the only place YAML, defaults, and
// validation meet; the gates see nothing but the compiled forms. A reload
// builds a whole new snapshot and swaps it in, or leaves the old one
// untouched when anything fails.
package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/trustgate/internal/scan"
)

// Paths names the three rule documents.
type Paths struct {
	Tools   string
	Network string
	Secrets string
}

// DefaultPaths returns the conventional document locations under
// ~/.trustgate, falling back to the system temp directory when the home
// directory cannot be resolved.
func DefaultPaths() Paths {
	base := filepath.Join(os.TempDir(), "trustgate")
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, ".trustgate")
	}
	return PathsIn(base)
}

// PathsIn returns the conventional document names inside dir.
func PathsIn(dir string) Paths {
	return Paths{
		Tools:   filepath.Join(dir, "tools.yaml"),
		Network: filepath.Join(dir, "network.yaml"),
		Secrets: filepath.Join(dir, "secrets.yaml"),
	}
}

// List returns the configured document paths, skipping empty entries.
func (p Paths) List() []string {
	var out []string
	for _, f := range []string{p.Tools, p.Network, p.Secrets} {
		if f == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Snapshot is one compiled generation of every rule document. Snapshots
// are immutable after construction: the gates read them without locks and
// a request keeps the snapshot it started with.
type Snapshot struct {
	Tools    map[string]*CompiledPolicy
	Network  []*CompiledRule
	Scanner  *scan.Scanner
	LoadedAt time.Time
}

// Policy returns the compiled policy for a tool name, or nil when the tool
// is unknown.
func (s *Snapshot) Policy(tool string) *CompiledPolicy {
	if s == nil {
		return nil
	}
	return s.Tools[tool]
}

// Store owns the current snapshot and the raw documents it was compiled
// from. Reload and the rule admin operations replace the snapshot
// wholesale; readers are never blocked by a load in progress.
type Store struct {
	mu      sync.RWMutex
	paths   Paths
	logger  *zap.Logger
	snap    *Snapshot
	tools   toolsDoc
	network networkDoc
	secrets secretsDoc
}

// Open reads the rule documents and compiles the first snapshot. A missing
// document is not an error: the built-in defaults stand in. A document
// that exists but cannot be read or parsed is logged and replaced by
// defaults too, so a broken edit degrades to the conservative built-ins
// instead of taking the gates down.
func Open(paths Paths, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{paths: paths, logger: logger}

	tdoc, err := loadToolsDoc(paths.Tools)
	if err != nil {
		logger.Warn("tool policies unreadable, using defaults", zap.String("path", paths.Tools), zap.Error(err))
		tdoc = toolsDoc{Policies: DefaultToolPolicies()}
	}
	ndoc, err := loadNetworkDoc(paths.Network)
	if err != nil {
		logger.Warn("network rules unreadable, using defaults", zap.String("path", paths.Network), zap.Error(err))
		ndoc = networkDoc{Rules: DefaultNetworkRules()}
	}
	sdoc, err := loadSecretsDoc(paths.Secrets)
	if err != nil {
		logger.Warn("secret patterns unreadable, using defaults", zap.String("path", paths.Secrets), zap.Error(err))
		sdoc = secretsDoc{Patterns: DefaultSecretPatterns()}
	}

	s.tools, s.network, s.secrets = tdoc, ndoc, sdoc
	s.rebuildLocked()
	return s
}

// Snapshot returns the current compiled snapshot.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Paths returns the document paths the store was opened with.
func (s *Store) Paths() Paths {
	return s.paths
}

// Reload re-reads every document and swaps in a new snapshot. If any
// document fails to load, the previous snapshot stays active and the
// error is returned.
func (s *Store) Reload() error {
	tdoc, err := loadToolsDoc(s.paths.Tools)
	if err != nil {
		return fmt.Errorf("reload tool policies: %w", err)
	}
	ndoc, err := loadNetworkDoc(s.paths.Network)
	if err != nil {
		return fmt.Errorf("reload network rules: %w", err)
	}
	sdoc, err := loadSecretsDoc(s.paths.Secrets)
	if err != nil {
		return fmt.Errorf("reload secret patterns: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools, s.network, s.secrets = tdoc, ndoc, sdoc
	s.rebuildLocked()
	s.logger.Info("rules reloaded",
		zap.Int("tools", len(s.snap.Tools)),
		zap.Int("network_rules", len(s.snap.Network)),
		zap.Int("secret_patterns", len(s.snap.Scanner.SecretRules())))
	return nil
}

// AddNetworkRule validates a rule, appends it to the network document, and
// swaps in a snapshot that includes it. The document is persisted
// best-effort; a write failure keeps the rule active in memory.
func (s *Store) AddNetworkRule(raw NetworkRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(raw.ID) == "" {
		raw.ID = s.freeRuleIDLocked()
	}
	for _, r := range s.network.Rules {
		if r.ID == raw.ID {
			return fmt.Errorf("network rule %q already exists", raw.ID)
		}
	}
	if _, err := compileNetworkRule(raw, len(s.network.Rules)); err != nil {
		return err
	}

	s.network.Rules = append(s.network.Rules, raw)
	s.rebuildLocked()
	s.persistNetworkLocked()
	return nil
}

// RemoveNetworkRule deletes a rule by ID.
func (s *Store) RemoveNetworkRule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findNetworkRuleLocked(id)
	if i < 0 {
		return fmt.Errorf("network rule %q not found", id)
	}
	s.network.Rules = append(s.network.Rules[:i], s.network.Rules[i+1:]...)
	s.rebuildLocked()
	s.persistNetworkLocked()
	return nil
}

// SetNetworkRuleEnabled flips a rule's enabled flag. A disabled rule still
// matches and blocks; it never falls through to a broader rule.
func (s *Store) SetNetworkRuleEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.findNetworkRuleLocked(id)
	if i < 0 {
		return fmt.Errorf("network rule %q not found", id)
	}
	s.network.Rules[i].Enabled = &enabled
	s.rebuildLocked()
	s.persistNetworkLocked()
	return nil
}

// NetworkRules returns a copy of the raw network document, in order.
func (s *Store) NetworkRules() []NetworkRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]NetworkRule, len(s.network.Rules))
	copy(out, s.network.Rules)
	return out
}

// ToolPolicies returns a copy of the raw tool policy document, in order.
func (s *Store) ToolPolicies() []ToolPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ToolPolicy, len(s.tools.Policies))
	copy(out, s.tools.Policies)
	return out
}

// SecretPatterns returns a copy of the raw secret pattern document, in
// order.
func (s *Store) SecretPatterns() []SecretPattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SecretPattern, len(s.secrets.Patterns))
	copy(out, s.secrets.Patterns)
	return out
}

// rebuildLocked recompiles the snapshot from the raw documents. Callers
// hold the write lock (or own the store exclusively during Open).
func (s *Store) rebuildLocked() {
	s.snap = &Snapshot{
		Tools:    compileTools(s.tools.Policies, s.logger),
		Network:  compileNetwork(s.network.Rules, s.logger),
		Scanner:  scan.New(compileSecrets(s.secrets.Patterns, s.logger)),
		LoadedAt: time.Now().UTC(),
	}
}

func (s *Store) findNetworkRuleLocked(id string) int {
	for i, r := range s.network.Rules {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// freeRuleIDLocked synthesizes the first rule-NNN identifier no existing
// rule uses.
func (s *Store) freeRuleIDLocked() string {
	taken := make(map[string]bool, len(s.network.Rules))
	for _, r := range s.network.Rules {
		taken[r.ID] = true
	}
	for n := len(s.network.Rules) + 1; ; n++ {
		id := fmt.Sprintf("rule-%03d", n)
		if !taken[id] {
			return id
		}
	}
}

// persistNetworkLocked writes the network document back to disk. Failures
// are logged, not returned: the in-memory snapshot already changed and an
// unwritable disk must not undo an enforcement decision.
func (s *Store) persistNetworkLocked() {
	if s.paths.Network == "" {
		return
	}
	data, err := yaml.Marshal(s.network)
	if err != nil {
		s.logger.Error("marshal network rules", zap.Error(err))
		return
	}
	header := "# trustgate network rules\n# Rewritten by a rule admin operation; comments from earlier edits are not kept.\n"
	if err := WriteFileAtomic(s.paths.Network, append([]byte(header), data...), 0o644); err != nil {
		s.logger.Error("persist network rules", zap.String("path", s.paths.Network), zap.Error(err))
	}
}

func loadToolsDoc(path string) (toolsDoc, error) {
	var doc toolsDoc
	data, err := readDoc(path)
	if err != nil {
		return doc, err
	}
	if data == nil {
		return toolsDoc{Policies: DefaultToolPolicies()}, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return toolsDoc{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func loadNetworkDoc(path string) (networkDoc, error) {
	var doc networkDoc
	data, err := readDoc(path)
	if err != nil {
		return doc, err
	}
	if data == nil {
		return networkDoc{Rules: DefaultNetworkRules()}, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return networkDoc{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func loadSecretsDoc(path string) (secretsDoc, error) {
	var doc secretsDoc
	data, err := readDoc(path)
	if err != nil {
		return doc, err
	}
	if data == nil {
		return secretsDoc{Patterns: DefaultSecretPatterns()}, nil
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return secretsDoc{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// readDoc returns the file's bytes, or (nil, nil) when the path is empty
// or the file does not exist.
func readDoc(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// WriteTemplates writes the commented default documents for any path that
// does not already exist. Used by trustgate init; existing files are
// never overwritten.
func WriteTemplates(paths Paths) ([]string, error) {
	type doc struct {
		path    string
		content string
	}
	var written []string
	for _, d := range []doc{
		{paths.Tools, DefaultToolsYAML()},
		{paths.Network, DefaultNetworkYAML()},
		{paths.Secrets, DefaultSecretsYAML()},
	} {
		if d.path == "" {
			continue
		}
		if _, err := os.Stat(d.path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return written, err
		}
		if err := WriteFileAtomic(d.path, []byte(d.content), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", d.path, err)
		}
		written = append(written, d.path)
	}
	return written, nil
}
