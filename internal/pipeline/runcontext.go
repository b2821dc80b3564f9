package pipeline

import (
	"fmt"
	"path"
	"strings"

	"github.com/hashicorp/go-multierror"

	lserrors "github.com/arkilian/lakestage/internal/errors"
	"github.com/arkilian/lakestage/internal/storage"
	"github.com/arkilian/lakestage/pkg/types"
)

// RunContext holds the parameters of a single run. Everything is required
// except SpecLocation, which defaults to the configured spec prefix, and
// LineageTable, which disables lineage when empty.
type RunContext struct {
	Environment     string
	SourceLocation  string
	SourceKey       string
	BaseFileName    string
	TargetLocation  string
	Database        string
	Table           string
	Key             types.PartitionKey
	ExecutionID     string
	ScratchLocation string
	SpecLocation    string
	LineageTable    string
}

// Validate reports every missing or invalid parameter at once.
func (rc RunContext) Validate() error {
	var result *multierror.Error
	required := []struct {
		name, value string
	}{
		{"environment", rc.Environment},
		{"source-location", rc.SourceLocation},
		{"source-key", rc.SourceKey},
		{"base-file-name", rc.BaseFileName},
		{"target-location", rc.TargetLocation},
		{"database", rc.Database},
		{"table", rc.Table},
		{"execution-id", rc.ExecutionID},
		{"scratch-location", rc.ScratchLocation},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			result = multierror.Append(result, fmt.Errorf("%s is required", r.name))
		}
	}
	if err := rc.Key.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	for _, name := range []string{rc.Database, rc.Table} {
		if strings.ContainsAny(name, "/. ") {
			result = multierror.Append(result, fmt.Errorf("invalid catalog name %q", name))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return lserrors.Wrap(lserrors.ErrCategoryValidation, lserrors.CodeInvalidRunContext,
			"invalid run context", err)
	}
	return nil
}

// SourceKeyDashes names the run's artifacts: database-table.
func (rc RunContext) SourceKeyDashes() string {
	return rc.Database + "-" + rc.Table
}

// SourcePath is the object key of the raw input file.
func (rc RunContext) SourcePath() string {
	return storage.Join(rc.SourceLocation, rc.SourceKey, rc.BaseFileName)
}

// Ext is the source file extension including the dot.
func (rc RunContext) Ext() string {
	return path.Ext(rc.BaseFileName)
}

func (rc RunContext) specPrefix(fallback string) string {
	if rc.SpecLocation != "" {
		return rc.SpecLocation
	}
	return fallback
}

// SpecPath is the object key of the input/transform spec.
func (rc RunContext) SpecPath(fallbackPrefix string) string {
	return storage.Join(rc.specPrefix(fallbackPrefix), rc.SourceKeyDashes()+".json")
}

// MappingPath is the object key of the mapping file.
func (rc RunContext) MappingPath(fallbackPrefix string) string {
	return storage.Join(rc.specPrefix(fallbackPrefix), rc.SourceKeyDashes()+".csv")
}

// RulesPath is the object key of the quality rule file.
func (rc RunContext) RulesPath(prefix string) string {
	return storage.Join(prefix, "dq-"+rc.SourceKeyDashes()+".json")
}

// TargetPath is the storage location of the target table.
func (rc RunContext) TargetPath() string {
	return storage.Join(rc.TargetLocation, rc.SourceKey)
}

// QuarantineTable is the name of the table receiving quarantined rows.
func (rc RunContext) QuarantineTable() string {
	return rc.Table + "_quarantine"
}

// QuarantinePath is the storage location of the quarantine table.
func (rc RunContext) QuarantinePath() string {
	return storage.Join(rc.TargetLocation, "quarantine", rc.Database, rc.Table)
}

// MappingArtifactPath is where a recommended mapping is written.
func (rc RunContext) MappingArtifactPath() string {
	return storage.Join(rc.ScratchLocation, rc.SourceKeyDashes()+".csv")
}

// SpecArtifactPath is where a recommended spec is written.
func (rc RunContext) SpecArtifactPath() string {
	return storage.Join(rc.ScratchLocation, rc.SourceKeyDashes()+".json")
}
