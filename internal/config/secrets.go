package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Wallet
	out.Wallet = cfg.Wallet
	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Server
	out.Server = cfg.Server
	redact(&out.Server.APIKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Engine.Pairs != nil {
		out.Engine.Pairs = make([]string, len(cfg.Engine.Pairs))
		copy(out.Engine.Pairs, cfg.Engine.Pairs)
	}
	if cfg.Venues != nil {
		out.Venues = make([]VenueConfig, len(cfg.Venues))
		copy(out.Venues, cfg.Venues)
	}
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}

	// Copy maps so mutations to the redacted copy do not affect the original.
	if cfg.Aggregator.PairStaleness != nil {
		out.Aggregator.PairStaleness = make(map[string]duration, len(cfg.Aggregator.PairStaleness))
		for k, v := range cfg.Aggregator.PairStaleness {
			out.Aggregator.PairStaleness[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
