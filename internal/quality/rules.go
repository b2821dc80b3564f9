// Package quality evaluates data quality rules against a dataset at a
// named checkpoint and applies the halt, warn or quarantine action.
package quality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/storage"
)

// Checkpoint names where rules are evaluated.
type Checkpoint string

const (
	BeforeTransform Checkpoint = "before_transform"
	AfterTransform  Checkpoint = "after_transform"
)

// Action is what happens when a rule fails.
type Action string

const (
	ActionHalt       Action = "halt"
	ActionWarn       Action = "warn"
	ActionQuarantine Action = "quarantine"
)

// RuleSet holds the rules for one checkpoint, grouped by action.
type RuleSet struct {
	Halt       []Rule
	Warn       []Rule
	Quarantine []Rule
}

// Empty reports whether there is nothing to evaluate.
func (rs RuleSet) Empty() bool {
	return len(rs.Halt) == 0 && len(rs.Warn) == 0 && len(rs.Quarantine) == 0
}

// Rules is a parsed rule file.
type Rules struct {
	Key         string
	Found       bool
	checkpoints map[Checkpoint]RuleSet
}

// For returns the rules tagged for cp. Unknown checkpoints have no rules.
func (r Rules) For(cp Checkpoint) RuleSet {
	return r.checkpoints[cp]
}

// rawRuleSet accepts both the short and the *_rules spelling of each action.
type rawRuleSet struct {
	Halt            []string `json:"halt"`
	HaltRules       []string `json:"halt_rules"`
	Warn            []string `json:"warn"`
	WarnRules       []string `json:"warn_rules"`
	Quarantine      []string `json:"quarantine"`
	QuarantineRules []string `json:"quarantine_rules"`
}

// LoadRules reads the rule file at key. A missing file yields empty rules.
func LoadRules(ctx context.Context, store storage.ObjectStorage, key string) (Rules, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return Rules{Key: key}, nil
		}
		return Rules{}, lserrors.NewStorageError(lserrors.CodeDownloadFailed, "read quality rules "+key, err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return Rules{}, err
	}
	rules.Key = key
	return rules, nil
}

// ParseRules parses a rule file. Every rule must parse; all problems are
// reported together.
func ParseRules(data []byte) (Rules, error) {
	var raw map[string]rawRuleSet
	if err := json.Unmarshal(data, &raw); err != nil {
		return Rules{}, lserrors.Wrap(lserrors.ErrCategoryValidation, lserrors.CodeInvalidRule, "malformed quality rule file", err)
	}

	out := Rules{Found: true, checkpoints: make(map[Checkpoint]RuleSet, len(raw))}
	var errs *multierror.Error
	for name, rs := range raw {
		cp := Checkpoint(name)
		if cp != BeforeTransform && cp != AfterTransform {
			errs = multierror.Append(errs, fmt.Errorf("unknown checkpoint %q", name))
			continue
		}
		var set RuleSet
		set.Halt = parseAll(cp, ActionHalt, append(rs.Halt, rs.HaltRules...), &errs)
		set.Warn = parseAll(cp, ActionWarn, append(rs.Warn, rs.WarnRules...), &errs)
		set.Quarantine = parseAll(cp, ActionQuarantine, append(rs.Quarantine, rs.QuarantineRules...), &errs)
		out.checkpoints[cp] = set
	}
	if err := errs.ErrorOrNil(); err != nil {
		return Rules{}, lserrors.Wrap(lserrors.ErrCategoryValidation, lserrors.CodeInvalidRule, "invalid quality rules", err)
	}
	return out, nil
}

func parseAll(cp Checkpoint, action Action, texts []string, errs **multierror.Error) []Rule {
	var rules []Rule
	for _, text := range texts {
		r, err := ParseRule(text)
		if err != nil {
			*errs = multierror.Append(*errs, fmt.Errorf("%s.%s: %w", cp, action, err))
			continue
		}
		rules = append(rules, r)
	}
	return rules
}
