package config

import (
	"fmt"
	"math/big"
	"strings"

	"nftmarket/crypto"
	nativecommon "nftmarket/native/common"
	"nftmarket/native/marketplace"
	"nftmarket/observability/logging"
	"nftmarket/observability/otel"
	"nftmarket/storage"
)

// Market is the resolved form of the marketplace settings.
type Market struct {
	Address       [20]byte
	Owner         [20]byte
	FeeRecipient  [20]byte
	TradingFeeBps uint32
	// MaxPrice is nil when the engine default applies.
	MaxPrice *big.Int
	Payout   marketplace.PayoutPolicy
}

// Validate checks every field that Resolve would otherwise reject.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case storage.BackendLevelDB, storage.BackendBolt, storage.BackendMemory, "":
	default:
		return fmt.Errorf("config: unknown backend %q", cfg.Backend)
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if !otel.ValidExporter(cfg.Telemetry.Exporter) {
		return fmt.Errorf("config: unknown Telemetry.Exporter %q", cfg.Telemetry.Exporter)
	}
	if r := cfg.Telemetry.SampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("config: Telemetry.SampleRatio %v outside [0,1]", r)
	}
	_, err := cfg.Resolve()
	return err
}

// Resolve parses addresses, amounts and enums into engine values.
func (c *Config) Resolve() (*Market, error) {
	market := &Market{TradingFeeBps: c.TradingFeeBps}
	if c.TradingFeeBps > marketplace.MaxTradingFeeBps {
		return nil, fmt.Errorf("config: TradingFeeBps %d exceeds %d", c.TradingFeeBps, marketplace.MaxTradingFeeBps)
	}
	var err error
	if market.Address, err = parseRequired("MarketAddress", c.MarketAddress); err != nil {
		return nil, err
	}
	if market.Owner, err = parseRequired("Owner", c.Owner); err != nil {
		return nil, err
	}
	if strings.TrimSpace(c.FeeRecipient) != "" {
		if market.FeeRecipient, err = parseRequired("FeeRecipient", c.FeeRecipient); err != nil {
			return nil, err
		}
	}
	if market.MaxPrice, err = parseMaxPrice(c.MaxPrice); err != nil {
		return nil, err
	}
	if market.Payout, err = marketplace.ParsePayoutPolicy(strings.ToLower(strings.TrimSpace(c.PayoutPolicy))); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return market, nil
}

// PauseView exposes the operator kill switches to the engine.
func (c *Config) PauseView() nativecommon.StaticPauses {
	return nativecommon.StaticPauses{marketplace.ModuleName: c.Pauses.Marketplace}
}

func parseRequired(field, value string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return addr, fmt.Errorf("config: %s: %w", field, err)
	}
	if addr == ([20]byte{}) {
		return addr, fmt.Errorf("config: %s must not be the zero address", field)
	}
	return addr, nil
}

func parseMaxPrice(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("config: MaxPrice %q is not a decimal integer", value)
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("config: MaxPrice must be positive")
	}
	return v, nil
}
