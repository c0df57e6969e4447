// Package engineconfig carries process-start tunables for the calculation
// engine itself — not statement data. File/env ingestion of the financial
// model (statement values, metric catalogs) is an out-of-scope collaborator
// concern per spec §1; this package only configures how the engine behaves,
// mirroring the viper.AutomaticEnv()/BindPFlag idiom eve.evalgo.org's
// cli/root.go uses for its own service tunables.
package engineconfig

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/nholding/fin-model-engine/internal/xlog"
)

// DivisionPolicy selects what the Division strategy does on a zero
// denominator: fail with engerr.KindDivisionByZero, or propagate a missing
// (NaN) result. Spec §8 Boundary behaviors requires both be selectable.
type DivisionPolicy string

const (
	DivisionPolicyError    DivisionPolicy = "error"
	DivisionPolicyPropagateNaN DivisionPolicy = "propagate_nan"
)

// EngineOptions are the engine's process-start knobs.
type EngineOptions struct {
	// DivisionPolicy governs the Division strategy's zero-denominator behavior.
	DivisionPolicy DivisionPolicy
	// MaxRecursionDepth bounds value() recursion as a backstop against
	// cycles introduced after the last validate() call (spec §4.6).
	MaxRecursionDepth int
	// ForecastRandomSeed is a seed for the "statistical" forecast
	// strategy's sampler (spec §4.7). The engine does not read it: the
	// source is built by the caller (forecast.NewRand) and passed to
	// Graph.AddForecast.
	ForecastRandomSeed int64
	// LogLevel is applied to the shared zerolog logger at startup.
	LogLevel string
}

// Defaults returns the engine's built-in tunables before any
// environment override is applied.
func Defaults() EngineOptions {
	return EngineOptions{
		DivisionPolicy:     DivisionPolicyError,
		MaxRecursionDepth:  512,
		ForecastRandomSeed: 1,
		LogLevel:           "info",
	}
}

// Load reads EngineOptions from environment variables prefixed FINENGINE_
// (e.g. FINENGINE_DIVISION_POLICY, FINENGINE_MAX_RECURSION_DEPTH), falling
// back to Defaults() for anything unset. It never reads a statement-shaped
// file — only engine tuning keys are registered.
func Load() EngineOptions {
	opts := Defaults()

	v := viper.New()
	v.SetEnvPrefix("FINENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("division_policy", string(opts.DivisionPolicy))
	v.SetDefault("max_recursion_depth", opts.MaxRecursionDepth)
	v.SetDefault("forecast_random_seed", opts.ForecastRandomSeed)
	v.SetDefault("log_level", opts.LogLevel)

	opts.DivisionPolicy = DivisionPolicy(v.GetString("division_policy"))
	opts.MaxRecursionDepth = v.GetInt("max_recursion_depth")
	opts.ForecastRandomSeed = v.GetInt64("forecast_random_seed")
	opts.LogLevel = v.GetString("log_level")

	return opts
}

// ApplyLogging sets the shared logger's level from opts.LogLevel, defaulting
// to info on an unrecognized value.
func (o EngineOptions) ApplyLogging() {
	lvl, err := zerolog.ParseLevel(o.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	xlog.SetLevel(lvl)
}
