package models

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ZeroAddress is used to warm up the scorer on startup.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// NormalizeAddress validates a 20-byte hex address (optional 0x prefix) and
// returns its canonical lowercase 0x-prefixed form.
func NormalizeAddress(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", &ValidationError{Field: "address", Value: s, Reason: "must be 40 hex characters with optional 0x prefix"}
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), nil
}

// Chain selects the EVM network the upstream provider is queried on.
type Chain string

const (
	ChainEthereum Chain = "eth"
	ChainBase     Chain = "base"
	ChainArbitrum Chain = "arbitrum"
	ChainOptimism Chain = "optimism"
	ChainPolygon  Chain = "polygon"
	ChainBSC      Chain = "bsc"
)

var chainIDs = map[Chain]int{
	ChainEthereum: 1,
	ChainBase:     8453,
	ChainArbitrum: 42161,
	ChainOptimism: 10,
	ChainPolygon:  137,
	ChainBSC:      56,
}

// ID returns the provider chain id, or 0 for unsupported chains.
func (c Chain) ID() int { return chainIDs[c] }

// IsValidChain returns true if c is a supported chain.
func IsValidChain(c Chain) bool {
	_, ok := chainIDs[c]
	return ok
}

// DefaultChain returns the default chain.
func DefaultChain() Chain { return ChainEthereum }

// NormalizeChain converts a raw string to a supported chain (or default).
func NormalizeChain(s string) Chain {
	if s == "" {
		return DefaultChain()
	}
	c := Chain(strings.ToLower(strings.TrimSpace(s)))
	if IsValidChain(c) {
		return c
	}
	return DefaultChain()
}

// ParseChain is the strict form of NormalizeChain: empty input selects the
// default chain, unsupported names are a ValidationError.
func ParseChain(s string) (Chain, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultChain(), nil
	}
	c := Chain(strings.ToLower(strings.TrimSpace(s)))
	if !IsValidChain(c) {
		return "", &ValidationError{Field: "chain", Value: s, Reason: "unsupported chain"}
	}
	return c, nil
}
