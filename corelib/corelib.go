// Package corelib holds the core class library, written in the language
// itself and embedded into every binary. It is the last classpath root a
// universe searches.
package corelib

import "embed"

// FS contains one <ClassName>.som file per core class.
//
//go:embed *.som
var FS embed.FS
