package config

import "time"

// BuyerConfig configures the command-line buyer client.  It does not require
// any server secrets, so it is loaded separately from Config.
type BuyerConfig struct {
	ServerURL        string
	SessionPath      string
	PollInterval     time.Duration
	AbandonThreshold time.Duration
	RequestTimeout   time.Duration
}

// LoadBuyerConfig reads RAFFLE_* variables with defaults matching the server.
func LoadBuyerConfig() BuyerConfig {
	return BuyerConfig{
		ServerURL:        envStr("RAFFLE_SERVER_URL", "http://localhost:3000"),
		SessionPath:      envStr("RAFFLE_SESSION_FILE", ".raffle-session.json"),
		PollInterval:     envDur("POLL_INTERVAL", 5*time.Second),
		AbandonThreshold: envDur("ABANDON_THRESHOLD", 30*time.Second),
		RequestTimeout:   envDur("UPSTREAM_TIMEOUT", 10*time.Second),
	}
}
