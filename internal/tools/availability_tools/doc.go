// Package availability_tools provides MCP tools for querying calendar
// availability: free slots within working hours, whether a range is
// available, the busy periods in a range and the consent URL used to
// connect a calendar.
package availability_tools
