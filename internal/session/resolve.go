package session

import (
	"os"

	"github.com/matheus3301/tgtriage/internal/config"
)

// SessionEnv names the session when no --session flag is given.
const SessionEnv = "TGTRIAGE_SESSION"

// DefaultSessionName is used when nothing else picks a session.
const DefaultSessionName = "main"

// Resolve picks the session for tgtriaged and tgtriagectl: the flag wins,
// then $TGTRIAGE_SESSION, then default_session in config.toml, then "main".
// An unreadable config is treated as absent.
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if name := os.Getenv(SessionEnv); name != "" {
		return name
	}
	if cfg, err := config.Load(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
