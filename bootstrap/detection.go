package bootstrap

import (
	"fmt"

	"shrike/config"
	"shrike/detect"
	"shrike/mitre"

	"go.uber.org/zap"
)

// InitCatalog loads the configured signature directories on top of the
// built-in set. The built-ins registered themselves into
// detect.DefaultCatalog at init time; declarative definitions join them
// here. Call once per process: re-loading a directory would collide with
// the names already registered.
func InitCatalog(cfg *config.Config, sugar *zap.SugaredLogger) (*detect.Catalog, error) {
	catalog := detect.DefaultCatalog

	for _, dir := range cfg.Signatures.Dirs {
		n, err := detect.LoadRuleDir(dir, catalog, sugar)
		if err != nil {
			return nil, fmt.Errorf("failed to load signature directory %s: %w", dir, err)
		}
		sugar.Infof("Loaded %d declarative signatures from %s", n, dir)
	}

	if catalog.Len() == 0 {
		sugar.Warn("Signature catalog is empty - analyses will produce no findings")
	}

	return catalog, nil
}

// InitTTPs loads the technique dictionary: the configured YAML file when
// set, the built-in dictionary otherwise.
func InitTTPs(cfg *config.Config, sugar *zap.SugaredLogger) (*mitre.Dictionary, error) {
	if cfg.Signatures.TTPFile == "" {
		return mitre.Builtin(), nil
	}

	dict, err := mitre.Load(cfg.Signatures.TTPFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TTP dictionary %s: %w", cfg.Signatures.TTPFile, err)
	}
	sugar.Infof("Loaded TTP dictionary from %s (%d techniques)", cfg.Signatures.TTPFile, dict.Len())
	return dict, nil
}

// NewMatcher builds the shared pattern matcher from configuration.
func NewMatcher(cfg *config.Config, sugar *zap.SugaredLogger) (*detect.Matcher, error) {
	matcher, err := detect.NewMatcher(sugar, detect.MatcherOptions{
		Timeout:          cfg.GetRegexTimeout(),
		CacheSize:        cfg.Matcher.PatternCacheSize,
		MaxPatternLength: cfg.Matcher.MaxPatternLength,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build matcher: %w", err)
	}
	return matcher, nil
}
