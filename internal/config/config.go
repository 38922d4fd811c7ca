// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config reads evidence-engine settings from the config file, the
// environment and defaults, and validates them.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/failure"
	"github.com/pdiddy/evidence-engine/internal/logger"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

const (
	// EnvPrefix prefixes environment overrides, e.g.
	// EVIDENCE_ENGINE_BACKEND_MODE=offline.
	EnvPrefix = "EVIDENCE_ENGINE"

	// FileName is the config file name searched for without extension.
	FileName = "evidence-engine"
)

// SetDefaults registers every key so environment overrides apply to all of
// them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("backend.mode", "")
	v.SetDefault("backend.model", "gpt-4o-mini")
	v.SetDefault("backend.max_tokens", 512)
	v.SetDefault("backend.credential", "")
	v.SetDefault("backend.hosted_base_url", "")
	v.SetDefault("backend.daemon_url", "http://localhost:11434")
	v.SetDefault("backend.timeout", 60*time.Second)
	v.SetDefault("backend.breaker.enabled", false)
	v.SetDefault("backend.breaker.consecutive_failures", 5)
	v.SetDefault("backend.breaker.open_timeout", 30*time.Second)

	v.SetDefault("extract.out", filepath.Join("outputs", "structured_evidence.json"))
	v.SetDefault("extract.default_source", "")

	v.SetDefault("report.template", "")
	v.SetDefault("report.out", filepath.Join("outputs", "final_report.md"))
	v.SetDefault("report.meta", filepath.Join("outputs", "final_report.json"))
	v.SetDefault("report.top_n", 10)
	v.SetDefault("report.use_llm", false)
	v.SetDefault("report.max_llm_tokens", 512)

	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", 24*time.Hour)

	v.SetDefault("knowledge.db_path", filepath.Join("knowledge", "evidence.db"))
	v.SetDefault("knowledge.max_results", 20)
}

// Setup points v at cfgFile, or at evidence-engine.yaml in the working
// directory or ~/.config/evidence-engine/, and enables environment
// overrides.
func Setup(v *viper.Viper, cfgFile string) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// Read loads the config file if there is one. A missing file is not an
// error; an unparsable one is.
func Read(v *viper.Viper) (bool, error) {
	err := v.ReadInConfig()
	if err == nil {
		return true, nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, failure.Configf("reading config %s: %v", v.ConfigFileUsed(), err)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	})
	if err != nil {
		return types.Config{}, failure.Configf("decoding config: %v", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return types.Config{}, failure.Configf("invalid config: %s", describe(err))
	}
	return cfg, nil
}

// describe flattens validator errors into "field: rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s (got %v)", fe.Namespace(), rule, fe.Value()))
	}
	return strings.Join(parts, "; ")
}

// Watch reloads the config whenever the file changes and passes each valid
// result to onChange. Invalid edits are logged and ignored. The file must
// already have been read.
func Watch(v *viper.Viper, log *zap.Logger, onChange func(types.Config)) {
	log = logger.OrNop(log)
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(v)
		if err != nil {
			log.Warn("ignoring config change", zap.String("file", e.Name), zap.Error(err))
			return
		}
		log.Info("config reloaded", zap.String("file", e.Name))
		onChange(cfg)
	})
	v.WatchConfig()
}
