// Package idgen produces the opaque identifiers handed out for sessions and
// request tags. It is stubbable so tests can assert on stable names.
package idgen
