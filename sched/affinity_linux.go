//go:build linux

package sched

import (
	"github.com/kestrelcsp/kestrel/internal/klog"
	"golang.org/x/sys/unix"
)

// init wires pinToCPU to a real sched_setaffinity call on Linux, per
// SPEC_FULL.md's domain-stack commitment to exercise golang.org/x/sys/unix.
// Best effort: pinning failures are logged, not fatal, since a container
// with a restricted cpuset may reject requests for CPUs outside it.
func init() {
	pinToCPU = func(cpu int) {
		var set unix.CPUSet
		set.Zero()
		set.Set(cpu)
		if err := unix.SchedSetaffinity(0, &set); err != nil {
			klog.Default.Warn("cpu affinity pin failed", "cpu", cpu, "err", err)
		}
	}
}
