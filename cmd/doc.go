// Package cmd implements the command-line interface for freetime.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing the availability tools over stdio
//   - slots: List free slots within working hours
//   - busy: List busy periods in a time range
//   - available: Check whether a time range is free
//   - auth: Connect a Google Calendar (url, exchange, revoke)
//   - version: Display version information
//
// Every command reads the YAML configuration named by --config, overlaid
// by environment variables.
package cmd
