// Package credentials stores per-user OAuth2 token pairs.
//
// Three backends implement Store:
//
//   - MemoryStore keeps tokens in process memory and is lost on restart.
//   - FileStore writes one 0600 file per user under the user cache directory.
//   - ValkeyStore keeps one hash per user in a Valkey server, suitable for
//     multiple replicas sharing the same credentials.
//
// User identifiers are validated with ValidateUserID before they are used as
// keys or file names.
package credentials
