package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(entry_message_id|exit_message_id|entry_time|exit_time)
// Returns the base58-encoded hash (43 or 44 characters).
func ComputeTradeID(
	entryMessageID int64,
	exitMessageID int64,
	entryTime int64,
	exitTime int64,
) string {
	data := fmt.Sprintf("%d|%d|%d|%d",
		entryMessageID,
		exitMessageID,
		entryTime,
		exitTime,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
