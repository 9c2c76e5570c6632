//go:build tools
// +build tools

// Package tools tracks the code generators used by go:generate directives so
// that go.mod pins their versions.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
