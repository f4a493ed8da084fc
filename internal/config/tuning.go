package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"coaster-builder/internal/curve"
	"coaster-builder/internal/editor"
	"coaster-builder/internal/physics"
	"coaster-builder/internal/session"
	"coaster-builder/internal/track"

	"github.com/tailscale/hujson"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root tuning file. Every field is optional; the Get*
// accessors fall back to the built-in defaults.
type TuningConfig struct {
	// Track params
	MinHeight *float64 `json:"min_height,omitempty"`

	// Curve params
	Interpolation      *string  `json:"interpolation,omitempty"` // centripetal, uniform, chordal or natural
	SamplesPerSegment  *int     `json:"samples_per_segment,omitempty"`
	DuplicateTolerance *float64 `json:"duplicate_tolerance,omitempty"`
	LoopTolerance      *float64 `json:"loop_tolerance,omitempty"`
	BankFactor         *float64 `json:"bank_factor,omitempty"`
	MaxBankDegrees     *float64 `json:"max_bank_degrees,omitempty"`
	BankSmoothing      *int     `json:"bank_smoothing,omitempty"`
	UprightRestore     *float64 `json:"upright_restore,omitempty"`

	// Ride params
	Gravity      *float64 `json:"gravity,omitempty"`
	Friction     *float64 `json:"friction,omitempty"`
	MinSpeed     *float64 `json:"min_speed,omitempty"`
	MaxSpeed     *float64 `json:"max_speed,omitempty"`
	InitialSpeed *float64 `json:"initial_speed,omitempty"`
	MaxStep      *string  `json:"max_step,omitempty"` // duration string like "8ms"

	// Editor params
	DefaultHeight         *float64 `json:"default_height,omitempty"`
	PreviewHeightPerPixel *float64 `json:"preview_height_per_pixel,omitempty"`
	DragHeightPerPixel    *float64 `json:"drag_height_per_pixel,omitempty"`
	MinSpacing            *float64 `json:"min_spacing,omitempty"`
	SnapRadius            *float64 `json:"snap_radius,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its default.
func DefaultTuningConfig() *TuningConfig {
	c := EmptyTuningConfig()
	c.MinHeight = ptrFloat64(c.GetMinHeight())
	c.Interpolation = ptrString(c.GetInterpolation().String())
	c.SamplesPerSegment = ptrInt(c.GetSamplesPerSegment())
	c.DuplicateTolerance = ptrFloat64(c.GetDuplicateTolerance())
	c.LoopTolerance = ptrFloat64(c.GetLoopTolerance())
	c.BankFactor = ptrFloat64(c.GetBankFactor())
	c.MaxBankDegrees = ptrFloat64(c.GetMaxBankDegrees())
	c.BankSmoothing = ptrInt(c.GetBankSmoothing())
	c.UprightRestore = ptrFloat64(c.GetUprightRestore())
	c.Gravity = ptrFloat64(c.GetGravity())
	c.Friction = ptrFloat64(c.GetFriction())
	c.MinSpeed = ptrFloat64(c.GetMinSpeed())
	c.MaxSpeed = ptrFloat64(c.GetMaxSpeed())
	c.InitialSpeed = ptrFloat64(c.GetInitialSpeed())
	c.MaxStep = ptrString(c.GetMaxStep().String())
	c.DefaultHeight = ptrFloat64(c.GetDefaultHeight())
	c.PreviewHeightPerPixel = ptrFloat64(c.GetPreviewHeightPerPixel())
	c.DragHeightPerPixel = ptrFloat64(c.GetDragHeightPerPixel())
	c.MinSpacing = ptrFloat64(c.GetMinSpacing())
	c.SnapRadius = ptrFloat64(c.GetSnapRadius())
	return c
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Comments and
// trailing commas are allowed. Fields omitted from the file keep their
// defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseTuningConfig(data)
}

// ParseTuningConfig decodes and validates a tuning document.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(std, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. It panics if the file cannot be found, and is meant
// for tests and tools run from inside the repository.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Validate checks that the set values are usable.
func (c *TuningConfig) Validate() error {
	if c.MinHeight != nil && *c.MinHeight <= 0 {
		return fmt.Errorf("min_height must be positive, got %f", *c.MinHeight)
	}
	if c.Interpolation != nil {
		if _, err := curve.ParseInterpolation(*c.Interpolation); err != nil {
			return err
		}
	}
	if c.SamplesPerSegment != nil && *c.SamplesPerSegment < 1 {
		return fmt.Errorf("samples_per_segment must be at least 1, got %d", *c.SamplesPerSegment)
	}
	if c.DuplicateTolerance != nil && *c.DuplicateTolerance < 0 {
		return fmt.Errorf("duplicate_tolerance must be non-negative, got %f", *c.DuplicateTolerance)
	}
	if c.LoopTolerance != nil && *c.LoopTolerance < 0 {
		return fmt.Errorf("loop_tolerance must be non-negative, got %f", *c.LoopTolerance)
	}
	if c.MaxBankDegrees != nil && (*c.MaxBankDegrees < 0 || *c.MaxBankDegrees > 180) {
		return fmt.Errorf("max_bank_degrees must be between 0 and 180, got %f", *c.MaxBankDegrees)
	}
	if c.MinSpeed != nil && *c.MinSpeed <= 0 {
		return fmt.Errorf("min_speed must be positive, got %f", *c.MinSpeed)
	}
	if c.GetMaxSpeed() < c.GetMinSpeed() {
		return fmt.Errorf("max_speed %f is below min_speed %f", c.GetMaxSpeed(), c.GetMinSpeed())
	}
	if c.MaxStep != nil && *c.MaxStep != "" {
		d, err := time.ParseDuration(*c.MaxStep)
		if err != nil {
			return fmt.Errorf("invalid max_step '%s': %w", *c.MaxStep, err)
		}
		if d <= 0 {
			return fmt.Errorf("max_step must be positive, got %s", d)
		}
	}
	if c.MinSpacing != nil && *c.MinSpacing < 0 {
		return fmt.Errorf("min_spacing must be non-negative, got %f", *c.MinSpacing)
	}
	if c.SnapRadius != nil && *c.SnapRadius < 0 {
		return fmt.Errorf("snap_radius must be non-negative, got %f", *c.SnapRadius)
	}
	return nil
}

// GetMinHeight returns the min_height value or the default.
func (c *TuningConfig) GetMinHeight() float64 {
	if c.MinHeight == nil {
		return track.MinHeight
	}
	return *c.MinHeight
}

// GetInterpolation returns the parsed interpolation or centripetal.
func (c *TuningConfig) GetInterpolation() curve.Interpolation {
	if c.Interpolation == nil {
		return curve.Centripetal
	}
	kind, err := curve.ParseInterpolation(*c.Interpolation)
	if err != nil {
		return curve.Centripetal // default on parse error
	}
	return kind
}

// GetSamplesPerSegment returns the samples_per_segment value or the default.
func (c *TuningConfig) GetSamplesPerSegment() int {
	if c.SamplesPerSegment == nil {
		return curve.DefaultOptions().SamplesPerSegment
	}
	return *c.SamplesPerSegment
}

// GetDuplicateTolerance returns the duplicate_tolerance value or the default.
func (c *TuningConfig) GetDuplicateTolerance() float64 {
	if c.DuplicateTolerance == nil {
		return curve.DefaultOptions().DuplicateTolerance
	}
	return *c.DuplicateTolerance
}

// GetLoopTolerance returns the loop_tolerance value or the default.
func (c *TuningConfig) GetLoopTolerance() float64 {
	if c.LoopTolerance == nil {
		return curve.DefaultOptions().LoopTolerance
	}
	return *c.LoopTolerance
}

// GetBankFactor returns the bank_factor value or the default.
func (c *TuningConfig) GetBankFactor() float64 {
	if c.BankFactor == nil {
		return curve.DefaultOptions().BankFactor
	}
	return *c.BankFactor
}

// GetMaxBankDegrees returns the max_bank_degrees value or the default.
func (c *TuningConfig) GetMaxBankDegrees() float64 {
	if c.MaxBankDegrees == nil {
		return curve.DefaultOptions().MaxBank * 180 / math.Pi
	}
	return *c.MaxBankDegrees
}

// GetBankSmoothing returns the bank_smoothing value or the default.
func (c *TuningConfig) GetBankSmoothing() int {
	if c.BankSmoothing == nil {
		return curve.DefaultOptions().BankSmoothing
	}
	return *c.BankSmoothing
}

// GetUprightRestore returns the upright_restore value or the default.
func (c *TuningConfig) GetUprightRestore() float64 {
	if c.UprightRestore == nil {
		return curve.DefaultOptions().UprightRestore
	}
	return *c.UprightRestore
}

func (c *TuningConfig) GetGravity() float64 {
	if c.Gravity == nil {
		return physics.DefaultParams().Gravity
	}
	return *c.Gravity
}

func (c *TuningConfig) GetFriction() float64 {
	if c.Friction == nil {
		return physics.DefaultParams().Friction
	}
	return *c.Friction
}

func (c *TuningConfig) GetMinSpeed() float64 {
	if c.MinSpeed == nil {
		return physics.DefaultParams().MinSpeed
	}
	return *c.MinSpeed
}

func (c *TuningConfig) GetMaxSpeed() float64 {
	if c.MaxSpeed == nil {
		return physics.DefaultParams().MaxSpeed
	}
	return *c.MaxSpeed
}

func (c *TuningConfig) GetInitialSpeed() float64 {
	if c.InitialSpeed == nil {
		return physics.DefaultParams().InitialSpeed
	}
	return *c.InitialSpeed
}

// GetMaxStep parses and returns the longest ride integration step.
func (c *TuningConfig) GetMaxStep() time.Duration {
	def := time.Duration(physics.DefaultParams().MaxStep * float64(time.Second))
	if c.MaxStep == nil || *c.MaxStep == "" {
		return def
	}
	d, err := time.ParseDuration(*c.MaxStep)
	if err != nil || d <= 0 {
		return def // default on parse error
	}
	return d
}

func (c *TuningConfig) GetDefaultHeight() float64 {
	if c.DefaultHeight == nil {
		return editor.DefaultParams().DefaultHeight
	}
	return *c.DefaultHeight
}

func (c *TuningConfig) GetPreviewHeightPerPixel() float64 {
	if c.PreviewHeightPerPixel == nil {
		return editor.DefaultParams().PreviewHeightPerPixel
	}
	return *c.PreviewHeightPerPixel
}

func (c *TuningConfig) GetDragHeightPerPixel() float64 {
	if c.DragHeightPerPixel == nil {
		return editor.DefaultParams().DragHeightPerPixel
	}
	return *c.DragHeightPerPixel
}

func (c *TuningConfig) GetMinSpacing() float64 {
	if c.MinSpacing == nil {
		return editor.DefaultParams().MinSpacing
	}
	return *c.MinSpacing
}

func (c *TuningConfig) GetSnapRadius() float64 {
	if c.SnapRadius == nil {
		return editor.DefaultParams().SnapRadius
	}
	return *c.SnapRadius
}

// CurveOptions converts the curve section.
func (c *TuningConfig) CurveOptions() curve.Options {
	return curve.Options{
		Interpolation:      c.GetInterpolation(),
		SamplesPerSegment:  c.GetSamplesPerSegment(),
		DuplicateTolerance: c.GetDuplicateTolerance(),
		LoopTolerance:      c.GetLoopTolerance(),
		BankFactor:         c.GetBankFactor(),
		MaxBank:            c.GetMaxBankDegrees() * math.Pi / 180,
		BankSmoothing:      c.GetBankSmoothing(),
		UprightRestore:     c.GetUprightRestore(),
	}
}

// RideParams converts the ride section.
func (c *TuningConfig) RideParams() physics.Params {
	return physics.Params{
		Gravity:      c.GetGravity(),
		Friction:     c.GetFriction(),
		MinSpeed:     c.GetMinSpeed(),
		MaxSpeed:     c.GetMaxSpeed(),
		InitialSpeed: c.GetInitialSpeed(),
		MaxStep:      c.GetMaxStep().Seconds(),
	}
}

// EditorParams converts the editor section.
func (c *TuningConfig) EditorParams() editor.Params {
	return editor.Params{
		DefaultHeight:         c.GetDefaultHeight(),
		PreviewHeightPerPixel: c.GetPreviewHeightPerPixel(),
		DragHeightPerPixel:    c.GetDragHeightPerPixel(),
		MinSpacing:            c.GetMinSpacing(),
		SnapRadius:            c.GetSnapRadius(),
	}
}

// SessionParams bundles every section for session.New.
func (c *TuningConfig) SessionParams() session.Params {
	return session.Params{
		MinHeight: c.GetMinHeight(),
		Curve:     c.CurveOptions(),
		Ride:      c.RideParams(),
		Editor:    c.EditorParams(),
	}
}
