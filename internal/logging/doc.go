// Package logging provides structured logging utilities for freetime.
//
// Logging is done with the standard library's slog package; this package
// only adds consistent attribute names and the sanitizers needed to keep
// personal data and credentials out of log output.
//
// # Usage Patterns
//
//	logger := logging.WithOperation(slog.Default(), "availability.slots")
//	logger.Info("slots computed",
//	    logging.UserHash(userID),
//	    logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
//   - User identifiers are hashed before logging (UserHash)
//   - Tokens are never logged directly; use SanitizeToken
package logging
