// Package schema decides whether a table's schema may change from one
// write to the next.
package schema

import (
	"fmt"
	"log/slog"
	"strings"

	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/pkg/types"
)

// Policy is a schema evolution policy.
type Policy string

const (
	// Permissive accepts any change.
	Permissive Policy = "permissive"
	// Reorder accepts added and reordered columns.
	Reorder Policy = "reorder"
	// Strict accepts no change at all.
	Strict Policy = "strict"
)

// ParsePolicy parses a policy name, ignoring case and surrounding space.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case Permissive, Reorder, Strict:
		return p, nil
	}
	return "", lserrors.NewValidationError(lserrors.CodeInvalidPolicy,
		fmt.Sprintf("unsupported schema change policy %q", s))
}

// DefaultForEnvironment derives the policy for an environment name:
// Dev is permissive, Test allows reordering, anything else is strict.
func DefaultForEnvironment(env string) Policy {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev":
		return Permissive
	case "test":
		return Reorder
	}
	return Strict
}

// Resolve returns the override when set, otherwise the environment default.
func Resolve(env, override string, logger *slog.Logger) (Policy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(override) != "" {
		p, err := ParsePolicy(override)
		if err != nil {
			return "", err
		}
		logger.Info("schema change policy from input spec", "policy", string(p))
		return p, nil
	}
	p := DefaultForEnvironment(env)
	logger.Info("schema change policy from environment", "environment", env, "policy", string(p))
	return p, nil
}

// Retype is a column whose type changed.
type Retype struct {
	Column string `json:"column"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// Diff describes how a proposed schema differs from an existing one.
type Diff struct {
	Added      []string `json:"added,omitempty"`
	Removed    []string `json:"removed,omitempty"`
	Retyped    []Retype `json:"retyped,omitempty"`
	Duplicates []string `json:"duplicates,omitempty"`
	Reordered  bool     `json:"reordered,omitempty"`
}

// Equal reports whether the schemas are identical.
func (d Diff) Equal() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Retyped) == 0 &&
		len(d.Duplicates) == 0 && !d.Reordered
}

// Compare computes the difference between existing and proposed columns.
// Types compare case-insensitively.
func Compare(existing, proposed []types.ColumnDef) Diff {
	var d Diff

	old := make(map[string]types.ColumnDef, len(existing))
	for _, c := range existing {
		old[c.Name] = c
	}
	seen := make(map[string]bool, len(proposed))
	for _, c := range proposed {
		if seen[c.Name] {
			d.Duplicates = append(d.Duplicates, c.Name)
			continue
		}
		seen[c.Name] = true
		prev, ok := old[c.Name]
		switch {
		case !ok:
			d.Added = append(d.Added, c.Name)
		case !strings.EqualFold(prev.Type, c.Type):
			d.Retyped = append(d.Retyped, Retype{Column: c.Name, From: prev.Type, To: c.Type})
		}
	}
	for _, c := range existing {
		if !seen[c.Name] {
			d.Removed = append(d.Removed, c.Name)
		}
	}

	// Relative order of the columns both sides share.
	var a, b []string
	for _, c := range existing {
		if seen[c.Name] {
			a = append(a, c.Name)
		}
	}
	kept := make(map[string]bool, len(proposed))
	for _, c := range proposed {
		if _, ok := old[c.Name]; ok && !kept[c.Name] {
			kept[c.Name] = true
			b = append(b, c.Name)
		}
	}
	for i := range a {
		if a[i] != b[i] {
			d.Reordered = true
			break
		}
	}
	return d
}

// Check compares the schemas and rejects the change when policy forbids it.
func Check(existing, proposed []types.ColumnDef, policy Policy) (Diff, error) {
	d := Compare(existing, proposed)

	var reason string
	switch policy {
	case Permissive:
		return d, nil
	case Reorder:
		switch {
		case len(d.Removed) > 0:
			reason = "columns removed: " + strings.Join(d.Removed, ", ")
		case len(d.Retyped) > 0:
			reason = "columns retyped: " + retypedNames(d.Retyped)
		case len(d.Duplicates) > 0:
			reason = "duplicate columns: " + strings.Join(d.Duplicates, ", ")
		}
	case Strict:
		if !d.Equal() {
			reason = "schema differs from existing table"
		}
	default:
		return d, lserrors.NewValidationError(lserrors.CodeInvalidPolicy,
			fmt.Sprintf("unsupported schema change policy %q", policy))
	}

	if reason == "" {
		return d, nil
	}
	return d, lserrors.NewSchemaError(lserrors.CodeIncompatibleSchema,
		fmt.Sprintf("%s schema change not allowed: %s", policy, reason)).
		WithDetails(map[string]interface{}{"policy": string(policy), "diff": d})
}

func retypedNames(rs []Retype) string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = fmt.Sprintf("%s (%s -> %s)", r.Column, r.From, r.To)
	}
	return strings.Join(names, ", ")
}
