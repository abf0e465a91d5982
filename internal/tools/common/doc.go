// Package common provides shared utilities for MCP tool implementations:
// argument parsing, user resolution and the instrumented handler wrapper.
package common
