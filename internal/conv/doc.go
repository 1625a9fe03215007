// Package conv provides safe integer type conversion utilities.
//
// Sizes read from FITS headers and blob metadata are untrusted; they pass
// through these checks before they size an allocation.
package conv
