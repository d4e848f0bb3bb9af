// Package output renders gatekeeper-cli results.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: borderless tablewriter tables for terminals
//   - json.go, yaml.go: machine-readable output
//
// JSON and YAML print the server's field names. Tables are built by each
// command; any other value is flattened into KEY/VALUE rows.
package output
