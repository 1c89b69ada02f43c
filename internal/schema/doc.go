// Package schema validates settings files against a CUE schema and turns
// them into settings.Settings values.
//
// Accepted inputs are CUE, YAML and JSON. All three are unified with the
// #Settings definition in settings.cue, so unknown fields, blank mapping
// fields and an empty mapping list are rejected with a source position.
//
// Uses CUE SDK's Go API directly (not CLI subprocess).
package schema
