// Package build is a helper package for building the SSA IR consumed by the
// parent ssa package, which lowers it for loop optimization.
//
// Usage
//
// There are two ways of building SSA IR from source code:
//
// Build from a list of source files
//
// This is the normal usage, where a number of files are supplied (usually as
// command line arguments), and the builder considers all of the files part
// of the same package.
//
// Build from a Reader
//
// This is used for tests and one-off snippets, where the source code of a
// single file is read from an io.Reader.
//
package build
