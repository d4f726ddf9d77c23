//go:build molgrid_debug

package grid

const debugAssertions = true
