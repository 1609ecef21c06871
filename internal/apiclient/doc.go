// Package apiclient talks to a running artdedup daemon over its HTTP JSON
// API.
//
// Error responses are decoded back into the services error markers so callers
// can classify remote failures with services.Kind exactly as they would local
// ones.
package apiclient
