// Package log builds the slog loggers of the simplecrawl command.
//
// Every logger returned by this package is wrapped in a SecureHandler that
// redacts credentials before a record reaches the output:
//
//   - attributes whose key names a credential (authorization, api_key, token)
//   - values shaped like credentials (bearer tokens, fc- API keys, JWTs)
//   - passwords in URL userinfo and credential query parameters of URLs,
//     such as webhook URLs or pagination cursors
//   - credential headers inside http.Header values
//
// Verbose mode lowers the level to Debug but never disables redaction.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("submitting crawl", "url", seed, "authorization", "Bearer fc-...")
package log
