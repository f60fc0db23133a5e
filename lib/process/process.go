// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers and external
// executable resolution for Switchboard binaries.
//
// Fatal centralizes the one legitimate raw-stderr write in a binary:
// reporting an unrecoverable error from run() in main(), where the
// structured logger may not be initialized. LookupExecutable is the
// shared resolution step behind adapter availability probes.
package process

import (
	"fmt"
	"os"
	"os/exec"
)

// Fatal writes "error: err" to stderr and exits with code 1. Use it in
// main() for errors from run().
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// LookupExecutable resolves a command the way the OS would at spawn
// time: a name containing a path separator is checked directly, a bare
// name is searched on PATH. Returns the resolved path.
func LookupExecutable(command string) (string, error) {
	path, err := exec.LookPath(command)
	if err != nil {
		return "", fmt.Errorf("resolving executable %q: %w", command, err)
	}
	return path, nil
}

// ExecutableAvailable reports whether the command resolves to an
// executable. It never returns an error: any resolution failure,
// including an empty command, reads as unavailable.
func ExecutableAvailable(command string) bool {
	if command == "" {
		return false
	}
	_, err := exec.LookPath(command)
	return err == nil
}
