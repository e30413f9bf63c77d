// Package shard decides which posts store a query runs against.
//
// A store is one independently provisioned database. Keyed operations carry
// the owner's email as partition key; global operations (the full listing)
// carry no key and fan out. Nothing here talks to a database: callers hand
// the router a function that runs against a store index.
package shard

import "unicode/utf16"

// HashToIndex maps key onto [0, n) with the rolling hash h = h*31 + c over the
// UTF-16 code units of key, in wrapping 32-bit signed arithmetic, followed by
// abs(h) mod n.
//
// The mapping depends on n: changing the store count moves nearly every key.
// Ring does not have that problem.
func HashToIndex(key string, n int) int {
	if n <= 0 {
		return 0
	}
	var h int32
	for _, unit := range utf16.Encode([]rune(key)) {
		h = h*31 + int32(unit)
	}
	// Widen before abs so math.MinInt32 stays positive.
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return int(abs % int64(n))
}
