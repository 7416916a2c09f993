// Package model contains the domain types shared by every layer: image schemas, the resolved
// path tree, records and the error kinds. No I/O lives here.
package model
