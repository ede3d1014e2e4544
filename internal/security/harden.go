// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package security

import "os"

// DisableMemoryLockEnvVar skips LockMemory when set (tests, containers
// without CAP_IPC_LOCK).
const DisableMemoryLockEnvVar = "APCOLD_DISABLE_MEMORY_LOCK"

// Status reports which protections Harden managed to apply.
type Status struct {
	CoreDumpsDisabled bool
	MemoryLocked      bool
	// Errors holds one entry per protection that failed.
	Errors []error
}

// Harden applies every available protection. Failures are collected, not
// fatal: the caller decides how loudly to complain.
func Harden() Status {
	var s Status
	if err := DisableCoreDumps(); err != nil {
		s.Errors = append(s.Errors, err)
	} else {
		s.CoreDumpsDisabled = true
	}
	if os.Getenv(DisableMemoryLockEnvVar) != "" {
		return s
	}
	if err := LockMemory(); err != nil {
		s.Errors = append(s.Errors, err)
	} else {
		s.MemoryLocked = true
	}
	return s
}
