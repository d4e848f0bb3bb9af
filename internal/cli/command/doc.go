// Package command defines the gatekeeper-cli commands.
//
// Every command builds a session from the global flags and the saved CLI
// config, talks to the server through connection.Client and renders the
// result with the selected output format. Login stores the issued tokens
// so later commands authenticate without flags.
package command
