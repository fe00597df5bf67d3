package pipeline

import (
	"context"

	"signal-trade-lab/internal/domain"
	"signal-trade-lab/internal/storage"
)

const (
	fixtureJan int64 = 1704067200000 // 2024-01-01T00:00:00Z
	fixtureFeb int64 = 1706745600000 // 2024-02-01T00:00:00Z
	hourMs     int64 = 3_600_000
)

// FixtureMessages returns a small channel log used for demonstrations and tests.
//
// Pairing it yields two trades: a LONG 50000 -> 50500 closed in January and a
// SHORT 50000 -> 49500 closed in February. It also contains an overwritten
// entry, an exit with nothing pending and unrelated chatter.
func FixtureMessages() []*domain.RawMessage {
	return []*domain.RawMessage{
		{ID: 101, Timestamp: fixtureJan, Text: "BTC prediction for the next hour\nActual price: 48000 USDT/BTC\nPrediction: ↗️ UP"},
		{ID: 102, Timestamp: fixtureJan + hourMs/2, Text: "BTC prediction for the next hour\nActual price: 50000 USDT/BTC\nPrediction: ↗️ UP"},
		{ID: 103, Timestamp: fixtureJan + hourMs, Text: "✅ Prediction was successful.\n↗️ price is UP to 50500\nProfit of trade is: 1.00 %"},
		{ID: 104, Timestamp: fixtureJan + 2*hourMs, Text: "Weekly channel update, thanks for following"},
		{ID: 105, Timestamp: fixtureJan + 3*hourMs, Text: "❌ Prediction was unsuccessful.\n↘️ price is DOWN to 50100\nLoss of trade is: 0.20 %"},
		{ID: 106, Timestamp: fixtureFeb, Text: "BTC prediction for the next hour\nActual price: 50000 USDT/BTC\nPrediction: ↘️ DOWN"},
		{ID: 107, Timestamp: fixtureFeb + hourMs, Text: "✅ Prediction was successful.\n↘️ price is DOWN to 49500\nProfit of trade is: 1.00 %"},
	}
}

// LoadFixtures populates the message log with FixtureMessages.
func LoadFixtures(ctx context.Context, messages storage.MessageStore) error {
	return messages.InsertBulk(ctx, FixtureMessages())
}
