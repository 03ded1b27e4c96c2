//go:build !windows

package config

func getResolutionPath() []string {
	return append(getBaseResolutionPath(), "/usr/local/etc/troupe")
}
