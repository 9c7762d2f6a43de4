package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// RecordKind distinguishes native-currency transactions from token transfers.
type RecordKind string

const (
	KindNative RecordKind = "native"
	KindToken  RecordKind = "token"
)

// NativeDecimals is the smallest-unit exponent of the native currency (wei).
const NativeDecimals = 18

// RawActivityRecord is one upstream transaction or token-transfer entry.
// Addresses are lowercase. Value is expressed in the smallest unit.
type RawActivityRecord struct {
	Timestamp     int64
	From          string
	To            string
	Value         decimal.Decimal
	Kind          RecordKind
	Contract      string // token transfers only
	TokenDecimals int32  // token transfers only
}

// Amount returns Value scaled to whole units of the native currency or token.
func (r RawActivityRecord) Amount() float64 {
	exp := int32(NativeDecimals)
	if r.Kind == KindToken {
		exp = r.TokenDecimals
	}
	if exp <= 0 {
		return r.Value.InexactFloat64()
	}
	return r.Value.Shift(-exp).InexactFloat64()
}

// SortByTime orders records ascending by timestamp, keeping upstream order for ties.
func SortByTime(records []RawActivityRecord) {
	if sort.SliceIsSorted(records, func(i, j int) bool { return records[i].Timestamp < records[j].Timestamp }) {
		return
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Timestamp < records[j].Timestamp })
}

// Activity bundles both record streams fetched for one address.
type Activity struct {
	Address string
	Chain   Chain
	Native  []RawActivityRecord
	Token   []RawActivityRecord
}

// Empty reports whether no records were found in either stream.
func (a Activity) Empty() bool { return len(a.Native) == 0 && len(a.Token) == 0 }
