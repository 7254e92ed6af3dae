//go:build planassert

package plan

// AssertionsEnabled turns on invariant checks after each rewrite step
const AssertionsEnabled = true
