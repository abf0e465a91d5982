// Package google wraps the OAuth2 flow used to obtain and refresh Google
// Calendar tokens.
//
// OAuthClient builds consent URLs, exchanges authorization codes for token
// pairs and refreshes access tokens. HTTPClient returns an authenticated
// client for a single access token, pinned to HTTP/1.1.
package google
