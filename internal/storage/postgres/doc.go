// Package postgres implements the user directory and daily quota store on
// PostgreSQL through pgx.
package postgres
