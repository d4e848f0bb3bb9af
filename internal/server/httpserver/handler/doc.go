// Package handler implements gatekeeper's HTTP endpoints.
//
// Handlers assume the middleware chain in package httpserver has already
// run: admission, authentication, rate limiting and quota checks happen
// before a handler is reached, and the verified identity is in the request
// context.
package handler
