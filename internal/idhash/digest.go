package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"signal-trade-lab/internal/domain"
)

// ComputeTradesDigest hashes an ordered trade list into a hex fingerprint.
// Two lists produce the same digest only if every trade matches field by field
// and in the same order. Prices are hashed in their canonical decimal form.
func ComputeTradesDigest(trades []domain.Trade) string {
	h := sha256.New()
	for _, t := range trades {
		fmt.Fprintf(h, "%s|%d|%d|%s|%d|%d|%s\n",
			t.EntryPrice.String(),
			t.EntryTime,
			t.EntryMessageID,
			t.ExitPrice.String(),
			t.ExitTime,
			t.ExitMessageID,
			t.Side.String(),
		)
	}
	return hex.EncodeToString(h.Sum(nil))
}
