package pricing

import (
	"context"
	"fmt"
	"strconv"
)

// Settings keys consumed by the policy.
const (
	KeyFreeShippingThreshold = "freeShippingThreshold"
	KeyShippingCost          = "shippingCost"
	KeyExpressShippingCost   = "expressShippingCost"
	KeyTaxRate               = "taxRate"
)

// Fallbacks when a key is absent or malformed.
const (
	DefaultFreeShippingThreshold = 4000.0
	DefaultShippingCost          = 500.0
	DefaultExpressShippingCost   = 900.0
	DefaultTaxRate               = 0.08
)

// Policy supplies the monetary knobs of checkout. Values are read per
// checkout, never cached on the order side; the order freezes the computed
// totals instead.
type Policy interface {
	FreeShippingThreshold(ctx context.Context) float64
	StandardShippingCost(ctx context.Context) float64
	ExpressShippingCost(ctx context.Context) float64
	TaxRate(ctx context.Context) float64
}

// SettingsReader is the narrow slice of the settings service the policy needs.
type SettingsReader interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
}

// SettingsPolicy reads the knobs from the site settings store, falling back
// to the defaults on missing keys, malformed values, or store failures.
type SettingsPolicy struct {
	settings SettingsReader
}

func NewSettingsPolicy(settings SettingsReader) *SettingsPolicy {
	return &SettingsPolicy{settings: settings}
}

func (p *SettingsPolicy) lookup(ctx context.Context, key string, fallback float64) float64 {
	raw, ok, err := p.settings.GetSetting(ctx, key)
	if err != nil {
		fmt.Printf("[pricing] setting %s unavailable, using default: %v\n", key, err)
		return fallback
	}
	if !ok {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		fmt.Printf("[pricing] setting %s malformed (%q), using default\n", key, raw)
		return fallback
	}
	return v
}

func (p *SettingsPolicy) FreeShippingThreshold(ctx context.Context) float64 {
	return p.lookup(ctx, KeyFreeShippingThreshold, DefaultFreeShippingThreshold)
}

func (p *SettingsPolicy) StandardShippingCost(ctx context.Context) float64 {
	return p.lookup(ctx, KeyShippingCost, DefaultShippingCost)
}

func (p *SettingsPolicy) ExpressShippingCost(ctx context.Context) float64 {
	return p.lookup(ctx, KeyExpressShippingCost, DefaultExpressShippingCost)
}

func (p *SettingsPolicy) TaxRate(ctx context.Context) float64 {
	return p.lookup(ctx, KeyTaxRate, DefaultTaxRate)
}

// Static is a fixed policy for tests.
type Static struct {
	Threshold float64
	Standard  float64
	Express   float64
	Rate      float64
}

func (s Static) FreeShippingThreshold(ctx context.Context) float64 { return s.Threshold }
func (s Static) StandardShippingCost(ctx context.Context) float64  { return s.Standard }
func (s Static) ExpressShippingCost(ctx context.Context) float64   { return s.Express }
func (s Static) TaxRate(ctx context.Context) float64               { return s.Rate }
