package models

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"github.com/rhuss/chatrelay/pkg/api"
	"github.com/rhuss/chatrelay/pkg/debug"
)

// OwnedBy is reported for every listed model.
const OwnedBy = "huggingface"

// Config describes the model table.
type Config struct {
	// Default is used when a request names no model. Must be canonical.
	Default string

	// Canonical lists the upstream model ids, in listing order.
	Canonical []string

	// Aliases maps a short name to one or more canonical candidates.
	Aliases map[string][]string
}

// DefaultConfig returns the built-in model table.
func DefaultConfig() Config {
	return Config{
		Default: "meta-llama/Llama-3.3-70B-Instruct",
		Canonical: []string{
			"meta-llama/Llama-3.3-70B-Instruct",
			"Qwen/Qwen2.5-72B-Instruct",
			"Qwen/QwQ-32B",
			"NousResearch/Hermes-3-Llama-3.1-8B",
			"NousResearch/Hermes-3-Llama-3.1-70B",
			"mistralai/Mistral-Nemo-Instruct-2407",
			"microsoft/Phi-3.5-mini-instruct",
		},
		Aliases: map[string][]string{
			"llama-3.3-70b": {"meta-llama/Llama-3.3-70B-Instruct"},
			"qwen-2.5-72b":  {"Qwen/Qwen2.5-72B-Instruct"},
			"qwq-32b":       {"Qwen/QwQ-32B"},
			"hermes-3-405b": {
				"NousResearch/Hermes-3-Llama-3.1-8B",
				"NousResearch/Hermes-3-Llama-3.1-70B",
			},
			"mistral-nemo": {"mistralai/Mistral-Nemo-Instruct-2407"},
			"phi-3.5-mini": {"microsoft/Phi-3.5-mini-instruct"},
		},
	}
}

// Validate checks that the table is internally consistent.
func (c Config) Validate() error {
	var errs []error

	if len(c.Canonical) == 0 {
		errs = append(errs, errors.New("models.canonical must list at least one model"))
	}

	seen := make(map[string]bool, len(c.Canonical))
	for _, id := range c.Canonical {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, errors.New("models.canonical contains an empty id"))
			continue
		}
		if seen[id] {
			errs = append(errs, fmt.Errorf("models.canonical lists %q twice", id))
		}
		seen[id] = true
	}

	if c.Default == "" {
		errs = append(errs, errors.New("models.default is required"))
	} else if !seen[c.Default] {
		errs = append(errs, fmt.Errorf("models.default %q is not a canonical model", c.Default))
	}

	for alias, candidates := range c.Aliases {
		if seen[alias] {
			errs = append(errs, fmt.Errorf("models.aliases.%s shadows a canonical model", alias))
		}
		if len(candidates) == 0 {
			errs = append(errs, fmt.Errorf("models.aliases.%s has no candidates", alias))
		}
		for _, id := range candidates {
			if !seen[id] {
				errs = append(errs, fmt.Errorf("models.aliases.%s: candidate %q is not a canonical model", alias, id))
			}
		}
	}

	return errors.Join(errs...)
}

// Registry is the immutable model table. It is safe for concurrent use.
type Registry struct {
	defaultID string
	canonical []string
	known     map[string]bool
	aliases   map[string][]string
	aliasKeys []string
	created   time.Time

	// pick returns an index in [0, n). Replaced in tests.
	pick func(n int) int
}

// New validates cfg and builds a Registry. The inputs are copied.
func New(cfg Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		defaultID: cfg.Default,
		canonical: slices.Clone(cfg.Canonical),
		known:     make(map[string]bool, len(cfg.Canonical)),
		aliases:   make(map[string][]string, len(cfg.Aliases)),
		created:   time.Now(),
		pick:      rand.IntN,
	}
	for _, id := range cfg.Canonical {
		r.known[id] = true
	}
	for alias, candidates := range cfg.Aliases {
		r.aliases[alias] = slices.Clone(candidates)
		r.aliasKeys = append(r.aliasKeys, alias)
	}
	slices.Sort(r.aliasKeys)

	return r, nil
}

// Resolve maps a requested model name to a canonical id. An empty name
// yields the default. Canonical ids pass through unchanged. An alias with
// several candidates picks one uniformly at random per call. Anything else
// fails with an UnknownModel error.
func (r *Registry) Resolve(requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return r.defaultID, nil
	}

	if r.known[requested] {
		return requested, nil
	}

	candidates, ok := r.aliases[requested]
	if !ok {
		return "", api.NewUnknownModelError(requested)
	}

	resolved := candidates[0]
	if len(candidates) > 1 {
		resolved = candidates[r.pick(len(candidates))]
	}
	debug.Log(debug.Engine, "model alias resolved", "alias", requested, "model", resolved)
	return resolved, nil
}

// Default returns the default canonical id.
func (r *Registry) Default() string {
	return r.defaultID
}

// Candidates returns a copy of an alias's candidates, or nil.
func (r *Registry) Candidates(alias string) []string {
	return slices.Clone(r.aliases[alias])
}

// Models lists canonical ids in configured order followed by the aliases in
// lexical order.
func (r *Registry) Models() []api.Model {
	created := r.created.Unix()
	out := make([]api.Model, 0, len(r.canonical)+len(r.aliasKeys))
	for _, id := range r.canonical {
		out = append(out, api.Model{ID: id, Object: api.ObjectModel, Created: created, OwnedBy: OwnedBy})
	}
	for _, alias := range r.aliasKeys {
		out = append(out, api.Model{ID: alias, Object: api.ObjectModel, Created: created, OwnedBy: OwnedBy})
	}
	return out
}
