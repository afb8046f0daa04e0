// Package config is the external configuration surface for the LAME
// scheduler core: bundle sizing, which handler variant to register,
// and the static-site bitmap's page granularity. Grounded on the
// surrounding runtime's threshold-driven AssignRole: a small struct
// built from named constants, validated once before anything touches a
// worker, with the decision logged at Info.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/caladan-sched/lame/bundle"
	"github.com/caladan-sched/lame/logging"
	"github.com/caladan-sched/lame/sched"
)

// TSCMode names the lame_tsc overhead-measurement setting. Validate
// checks it and logs it; nothing else in this module reads it, and the
// handler accumulates its cycle counter in every mode.
type TSCMode string

const (
	TSCOff     TSCMode = "off"
	TSCPretend TSCMode = "pretend"
	TSCNop     TSCMode = "nop"
)

// RegisterMode selects which delivery path and handler variant the
// core registers for (spec §4.6, §4.8).
type RegisterMode string

const (
	RegisterNone  RegisterMode = "none"  // do not register; the core stays dormant
	RegisterInt   RegisterMode = "int"   // INT-vector delivery, VariantSwitch
	RegisterPMU   RegisterMode = "pmu"   // PMU-overflow delivery, VariantSwitch
	RegisterStall RegisterMode = "stall" // either delivery path, VariantStall
	RegisterNop   RegisterMode = "nop"   // either delivery path, VariantNoop
)

// Variant maps a RegisterMode to the sched.Variant it registers, or
// false if the mode does not register a running handler at all.
func (m RegisterMode) Variant() (sched.Variant, bool) {
	switch m {
	case RegisterInt, RegisterPMU:
		return sched.VariantSwitch, true
	case RegisterStall:
		return sched.VariantStall, true
	case RegisterNop:
		return sched.VariantNoop, true
	default:
		return 0, false
	}
}

// Config is the full external surface (spec §6).
type Config struct {
	// BundleSize is the effective S passed to bundle.Init for every
	// worker (1 <= BundleSize <= bundle.Capacity).
	BundleSize uint32

	// TSC selects overhead measurement mode.
	TSC TSCMode

	// Register selects the delivery/variant combination (spec §4.8).
	Register RegisterMode

	// BitmapPageSizeExponent is log2 of the static-site bitmap's page
	// size in bytes (spec §4.7, §6: "lame_bitmap_pgsz_factor ... negative
	// disables"); 12 means 4KB pages. A negative value means no bitmap is
	// built at all, so the handler's NeedsXsave conservatively always
	// reports true.
	BitmapPageSizeExponent int
}

// BitmapEnabled reports whether the configuration wants a static-site
// bitmap built at all (spec §6: a negative exponent disables it).
func (c Config) BitmapEnabled() bool { return c.BitmapPageSizeExponent >= 0 }

// Default returns the smallest valid configuration: a bundle of 1 (no
// switching occurs, spec §3's static-disable case), no registration,
// 4KB bitmap pages.
func Default() Config {
	return Config{
		BundleSize:             1,
		TSC:                    TSCOff,
		Register:               RegisterNone,
		BitmapPageSizeExponent: 12,
	}
}

// Validate checks every field and logs the accepted configuration at
// Info, mirroring AssignRole's "decide, then log the decision" shape.
func (c Config) Validate() error {
	if c.BundleSize == 0 || c.BundleSize > bundle.Capacity {
		return logging.New(logging.InvalidConfig, "config.Validate: bundle_size")
	}
	switch c.TSC {
	case TSCOff, TSCPretend, TSCNop:
	default:
		return logging.New(logging.InvalidConfig, "config.Validate: lame_tsc")
	}
	switch c.Register {
	case RegisterNone, RegisterInt, RegisterPMU, RegisterStall, RegisterNop:
	default:
		return logging.New(logging.InvalidConfig, "config.Validate: lame_register")
	}
	if c.BitmapPageSizeExponent >= 0 && (c.BitmapPageSizeExponent < 6 || c.BitmapPageSizeExponent > 30) {
		return logging.New(logging.InvalidConfig, "config.Validate: lame_bitmap_pgsz_factor")
	}

	logging.Info("config: accepted",
		logging.Uint32("bundle_size", c.BundleSize),
		logging.String("lame_tsc", string(c.TSC)),
		logging.String("lame_register", string(c.Register)),
		logging.Int("lame_bitmap_pgsz_factor", c.BitmapPageSizeExponent),
	)
	return nil
}

// FromEnv loads Config from environment variables, falling back to
// Default for anything unset: LAME_BUNDLE_SIZE, LAME_TSC,
// LAME_REGISTER, LAME_BITMAP_PGSZ_FACTOR.
func FromEnv() (Config, error) {
	c := Default()

	if v := os.Getenv("LAME_BUNDLE_SIZE"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return c, fmt.Errorf("config.FromEnv: LAME_BUNDLE_SIZE: %w", err)
		}
		c.BundleSize = uint32(n)
	}
	if v := os.Getenv("LAME_TSC"); v != "" {
		c.TSC = TSCMode(v)
	}
	if v := os.Getenv("LAME_REGISTER"); v != "" {
		c.Register = RegisterMode(v)
	}
	if v := os.Getenv("LAME_BITMAP_PGSZ_FACTOR"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return c, fmt.Errorf("config.FromEnv: LAME_BITMAP_PGSZ_FACTOR: %w", err)
		}
		c.BitmapPageSizeExponent = int(n)
	}

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}
