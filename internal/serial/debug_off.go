//go:build !zeosdebug
// +build !zeosdebug

package serial

const debugBuild = false
