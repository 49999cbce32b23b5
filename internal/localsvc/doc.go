// Package localsvc implements the alerting and calendar service boundaries on
// top of SQLite, so the CLI works without an OS notification center or
// calendar database.
//
// Alerts and events live in their own tables next to the reminder records.
// Authorization is persisted per capability. A request for a capability that
// is still not determined is answered by the configured Policy, standing in
// for the user's answer to the OS prompt.
package localsvc
