package types

// ModelConfiguration carries per-request generation settings.
// Nil fields fall back to the provider's own defaults.
type ModelConfiguration struct {
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens   *int     `json:"max_tokens,omitempty" yaml:"max_tokens"`
}

// TemperatureOr returns the configured temperature or def.
func (c ModelConfiguration) TemperatureOr(def float64) float64 {
	if c.Temperature == nil {
		return def
	}
	return *c.Temperature
}

// MaxTokensOr returns the configured token ceiling or def.
func (c ModelConfiguration) MaxTokensOr(def int) int {
	if c.MaxTokens == nil || *c.MaxTokens <= 0 {
		return def
	}
	return *c.MaxTokens
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
