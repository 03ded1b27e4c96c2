//go:build !windows

package supervisor

func shellCommand(command string) (string, []string) {
	return "sh", []string{"-c", command}
}
