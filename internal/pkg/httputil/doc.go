// Package httputil provides the JSON and plain-text response helpers shared by
// the relay's HTTP handlers, so every endpoint reports errors the same way.
package httputil
