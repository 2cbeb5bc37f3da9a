package detect

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RuleCheck is one indicator probe of a declarative signature: a set of
// patterns evaluated against one result dimension.
type RuleCheck struct {
	Kind     string   `yaml:"kind" json:"kind" validate:"required,oneof=file key mutex dll command ip domain url hash"`
	Patterns []string `yaml:"patterns" json:"patterns" validate:"required,min=1"`
	Regex    bool     `yaml:"regex" json:"regex"`
}

// RuleSpec is a declarative signature: a plain definition plus indicator
// checks evaluated at the end of the analysis. Every value a check hits
// is recorded as an IOC mark.
type RuleSpec struct {
	Definition `yaml:",inline"`

	Checks     []RuleCheck `yaml:"checks" json:"checks" validate:"required,min=1,dive"`
	RequireAll bool        `yaml:"require_all" json:"require_all"`
}

type ruleFile struct {
	Signatures []RuleSpec `yaml:"signatures" json:"signatures"`
}

// ruleSignature evaluates a RuleSpec during the completion phase.
type ruleSignature struct {
	*Base
	spec RuleSpec
}

func (s *ruleSignature) Definition() Definition { return s.spec.Definition }

func (s *ruleSignature) OnComplete() error {
	hits := 0
	for _, check := range s.spec.Checks {
		values := s.evaluate(check)
		if len(values) == 0 {
			continue
		}
		hits++
		for _, v := range values {
			s.MarkIOC(check.Kind, v)
		}
	}
	if s.spec.RequireAll {
		if hits > 0 && hits == len(s.spec.Checks) {
			s.Match()
		}
	} else if hits > 0 {
		s.Match()
	}
	return nil
}

func (s *ruleSignature) evaluate(check RuleCheck) []string {
	var out []string
	for _, pattern := range check.Patterns {
		switch check.Kind {
		case "file":
			out = append(out, s.CheckFileAll(pattern, check.Regex)...)
		case "key":
			out = append(out, s.CheckRegistryKeyAll(pattern, check.Regex)...)
		case "mutex":
			out = append(out, s.CheckMutexAll(pattern, check.Regex)...)
		case "dll":
			out = append(out, s.CheckDLLLoadedAll(pattern, check.Regex)...)
		case "command":
			out = append(out, s.CheckCommandLineAll(pattern, check.Regex)...)
		case "ip":
			out = append(out, s.CheckIPAll(pattern, check.Regex)...)
		case "domain":
			out = append(out, s.CheckDomainAll(pattern, check.Regex)...)
		case "url":
			out = append(out, s.CheckURLAll(pattern, check.Regex)...)
		case "hash":
			out = append(out, s.MatchAll(pattern, check.Regex, s.Results().TargetHashes()...)...)
		}
	}
	return out
}

// LoadRuleFile reads declarative signatures from a YAML or JSON file and
// registers them in the catalog. Invalid entries are logged and skipped;
// the returned count covers the registered ones.
func LoadRuleFile(path string, catalog *Catalog, logger *zap.SugaredLogger) (int, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read signature file: %w", err)
	}

	var file ruleFile
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		err = yaml.Unmarshal(data, &file)
	} else {
		err = json.Unmarshal(data, &file)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to unmarshal signature file %s: %w", path, err)
	}

	loaded := 0
	for _, spec := range file.Signatures {
		if err := registerSpec(spec, catalog, logger); err != nil {
			logger.Errorw("skipping invalid signature",
				"file", path,
				"signature", spec.Name,
				"error", err,
			)
			continue
		}
		loaded++
	}
	logger.Infof("Loaded %d signatures from %s", loaded, path)
	return loaded, nil
}

// LoadRuleDir loads every .yaml, .yml and .json file under dir.
func LoadRuleDir(dir string, catalog *Catalog, logger *zap.SugaredLogger) (int, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	total := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml", ".json":
		default:
			return nil
		}
		n, err := LoadRuleFile(path, catalog, logger)
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("failed to load signature directory: %w", err)
	}
	return total, nil
}

func registerSpec(spec RuleSpec, catalog *Catalog, logger *zap.SugaredLogger) error {
	if err := defValidator.Struct(spec); err != nil {
		return fmt.Errorf("invalid signature spec: %w", err)
	}
	for _, check := range spec.Checks {
		if !check.Regex {
			continue
		}
		for _, pattern := range check.Patterns {
			if _, err := regexp2.Compile(pattern, regexp2.IgnoreCase); err != nil {
				return fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
		}
	}
	return catalog.Register(spec.Definition, func(base *Base) Signature {
		return &ruleSignature{Base: base, spec: spec}
	})
}
