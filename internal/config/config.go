package config // package config loads application configuration from environment variables

import (
	"log"      // log is used to report configuration errors and halt execution
	"os"       // os provides access to environment variables
	"strconv"  // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
	Env             string // application environment (e.g. "dev", "prod")
	Port            string // HTTP port to listen on
	DBUser          string // database username
	DBPass          string // database password (optional)
	DBHost          string // database host address
	DBPort          string // database port number
	DBName          string // database name
	JWTSecret       string // shared secret used to sign SSO tokens (trust root for all cooperating services)
	TokenIssuer     string // issuer string embedded in and required of every token
	TokenTTLHours   int    // token time-to-live in hours
	SessionTTLHours int    // server-side session time-to-live in hours
	CookieDomain    string // parent domain the auth cookies are scoped to (e.g. ".example.com")
	BcryptCost      int    // bcrypt cost for password hashing
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The signing secret
// is additionally checked for minimum length: every service sharing the
// cookie domain trusts this one value, so a short secret weakens all of them.
func Load() Config {
	cfg := Config{
		Env:             must("APP_ENV"),              // environment (dev/test/prod)
		Port:            must("APP_PORT"),             // port to bind the HTTP server
		DBUser:          must("DB_USER"),              // database user
		DBPass:          os.Getenv("DB_PASS"),         // database password (empty allowed)
		DBHost:          must("DB_HOST"),              // database host
		DBPort:          must("DB_PORT"),              // database port
		DBName:          must("DB_NAME"),              // database name
		JWTSecret:       must("JWT_SECRET"),           // shared signing secret
		TokenIssuer:     must("TOKEN_ISSUER"),         // issuer pinned on every token
		TokenTTLHours:   mustInt("TOKEN_TTL_HOURS"),   // TTL for signed tokens in hours
		SessionTTLHours: mustInt("SESSION_TTL_HOURS"), // TTL for server-side sessions in hours
		CookieDomain:    must("COOKIE_DOMAIN"),        // parent domain for SSO cookies
		BcryptCost:      mustInt("BCRYPT_COST"),       // bcrypt cost factor
	}
	if len(cfg.JWTSecret) < 32 {
		log.Fatalf("JWT_SECRET must be at least 32 bytes, got %d", len(cfg.JWTSecret))
	}
	return cfg
}

// Prod reports whether the application runs in the production environment.
// Cookie security attributes depend on this.
func (c Config) Prod() bool { return c.Env == "prod" }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
