package app

import "github.com/shandysiswandi/goledger/internal/ledger"

func defaults() map[string]any {
	values := map[string]any{
		"tz":                          "",
		"log.level":                   "info",
		"server.address.http":         ":8080",
		"server.max_replays":          100,
		"server.cors.allowed_origins": "*",
		"modules.ledger.enabled":      true,
	}
	for key, value := range ledger.Defaults() {
		values[key] = value
	}
	return values
}
