package main

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"nftmarket/crypto"
)

// parseAmount parses a base unit amount. Decimal and exponent shorthands such
// as 5e17 or 0.5e18 are accepted as long as the result is a whole number.
func parseAmount(value string) (*big.Int, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), "_", "")
	if cleaned == "" {
		return nil, fmt.Errorf("amount is required")
	}
	var exp int
	base := cleaned
	if strings.ContainsAny(cleaned, "eE") {
		parts := strings.Split(strings.ToLower(cleaned), "e")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid amount format")
		}
		base = parts[0]
		parsedExp, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid exponent: %v", err)
		}
		exp = parsedExp
	}
	scale := 0
	if strings.Contains(base, ".") {
		comps := strings.SplitN(base, ".", 2)
		scale = len(comps[1])
		base = comps[0] + comps[1]
	}
	digits := strings.TrimLeft(base, "+")
	if digits == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amt := new(big.Int)
	if _, ok := amt.SetString(digits, 10); !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	expTotal := exp - scale
	if expTotal < 0 {
		return nil, fmt.Errorf("amount must be an integer")
	}
	if expTotal > 0 {
		amt.Mul(amt, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(expTotal)), nil))
	}
	if amt.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amt, nil
}

// parseEndTime accepts +duration (with a d suffix for days), an RFC3339
// timestamp or unix seconds.
func parseEndTime(value string, now time.Time) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("--end is required for auctions")
	}
	if strings.HasPrefix(trimmed, "+") {
		dur, err := parseDuration(strings.TrimSpace(trimmed[1:]))
		if err != nil {
			return 0, err
		}
		if dur <= 0 {
			return 0, fmt.Errorf("end duration must be positive")
		}
		return now.Add(dur).Unix(), nil
	}
	if unix, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return unix, nil
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid end time %q", value)
	}
	return ts.Unix(), nil
}

func parseDuration(value string) (time.Duration, error) {
	if strings.HasSuffix(value, "d") || strings.HasSuffix(value, "D") {
		days, err := strconv.ParseFloat(value[:len(value)-1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		return time.Duration(days * 24 * float64(time.Hour)), nil
	}
	dur, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", value)
	}
	return dur, nil
}

// parseAssetID accepts decimal or 0x-prefixed hex asset ids.
func parseAssetID(value string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		id, err := uint256.FromHex(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid asset id %q: %w", value, err)
		}
		return id, nil
	}
	id, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid asset id %q: %w", value, err)
	}
	return id, nil
}

func parseAddress(flag, value string) ([20]byte, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return addr, fmt.Errorf("%s: %w", flag, err)
	}
	return addr, nil
}

func formatAccount(addr [20]byte) string {
	return crypto.Format(crypto.AccountPrefix, addr)
}

func formatCollection(addr [20]byte) string {
	return crypto.Format(crypto.CollectionPrefix, addr)
}
