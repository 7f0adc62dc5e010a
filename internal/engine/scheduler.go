package engine

import "fmt"

// noProcess marks a Core with nothing running. Distinct constant from
// frameNone even though the sentinel value is the same, since the two
// mean different things (no frame vs. no owning process).
const noProcess = -1

// Core is one virtual CPU: it either owns a running process or is idle,
// and tracks its own RR quantum independently of every other core.
type Core struct {
	ID          int
	RunningPID  int
	QuantumLeft int
}

// tick runs one full scheduler cycle per §4.3, as a single critical
// section under the process-table lock. It returns whether the tick ended
// idle (no core holds a process and none is READY), used by the driver loop to
// decide how long to sleep before the next tick.
func (e *Engine) tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.clock++

	for _, pid := range e.order {
		p := e.processes[pid]
		p.StateTicks[p.State]++
	}

	// 2. Wake sleepers.
	for _, pid := range e.order {
		p := e.processes[pid]
		if p.State != StateSleeping {
			continue
		}
		p.SleepCounter--
		if p.SleepCounter <= 0 {
			transition(e.log, p, StateReady)
		}
	}

	// 3. Reap cores.
	for _, c := range e.cores {
		if c.RunningPID == noProcess {
			continue
		}
		p, ok := e.processes[c.RunningPID]
		if !ok || p.State == StateFinished || p.State == StateMemoryViolated {
			c.RunningPID = noProcess
			c.QuantumLeft = 0
		}
	}

	// 4. Dispatch.
	e.dispatchLocked()

	// 5. Execute.
	for _, c := range e.cores {
		if c.RunningPID == noProcess {
			continue
		}
		p := e.processes[c.RunningPID]
		executeInstruction(e.log, e.processes, e.mem, p, e.clock)
		if e.cfg.Scheduler == "rr" {
			c.QuantumLeft--
		}
	}

	// 6. Post-execute transitions.
	released := false
	for _, c := range e.cores {
		if c.RunningPID == noProcess {
			continue
		}
		p := e.processes[c.RunningPID]

		switch p.State {
		case StateFinished, StateMemoryViolated:
			c.RunningPID = noProcess
			released = true
		case StateSleeping:
			c.RunningPID = noProcess
			released = true
		default:
			if e.cfg.Scheduler == "rr" && c.QuantumLeft <= 0 {
				if e.hasOtherReadyLocked(p.PID) {
					transition(e.log, p, StateReady)
					if idx := e.indexOfLocked(p.PID); idx >= 0 {
						e.rrCursor = (idx + 1) % len(e.order)
					}
					c.RunningPID = noProcess
					released = true
				} else {
					c.QuantumLeft = e.cfg.QuantumCycles
				}
			}
		}
	}

	// 7. Reschedule.
	if released {
		e.dispatchLocked()
	}

	// 8. Batch creation.
	if e.autoCreate && e.cfg.BatchProcessFreq > 0 &&
		e.clock%uint64(e.cfg.BatchProcessFreq) == 0 && e.clock != e.lastBatchTick {
		e.lastBatchTick = e.clock
		e.spawnBatchLocked()
	}

	return e.idleLocked()
}

func (e *Engine) idleLocked() bool {
	for _, c := range e.cores {
		if c.RunningPID != noProcess {
			return false
		}
	}
	for _, pid := range e.order {
		if e.processes[pid].State == StateReady {
			return false
		}
	}
	return true
}

// dispatchLocked assigns a READY process to every idle core, per policy.
// Caller must hold e.mu.
func (e *Engine) dispatchLocked() {
	for _, c := range e.cores {
		if c.RunningPID != noProcess {
			continue
		}

		var pid int
		var ok bool
		if e.cfg.Scheduler == "fcfs" {
			pid, ok = e.pickFCFSLocked()
		} else {
			pid, ok = e.pickRRLocked()
		}
		if !ok {
			continue
		}

		p := e.processes[pid]
		transition(e.log, p, StateRunning)
		c.RunningPID = pid
		if e.cfg.Scheduler == "rr" {
			c.QuantumLeft = e.cfg.QuantumCycles
		}
	}
}

// pickFCFSLocked returns the READY process with the smallest position in
// the process table.
func (e *Engine) pickFCFSLocked() (int, bool) {
	for _, pid := range e.order {
		if e.processes[pid].State == StateReady {
			return pid, true
		}
	}
	return 0, false
}

// pickRRLocked scans the process table circularly from rrCursor and
// returns the first READY process, advancing the cursor past it.
func (e *Engine) pickRRLocked() (int, bool) {
	n := len(e.order)
	if n == 0 {
		return 0, false
	}
	for i := 0; i < n; i++ {
		idx := (e.rrCursor + i) % n
		pid := e.order[idx]
		if e.processes[pid].State == StateReady {
			e.rrCursor = (idx + 1) % n
			return pid, true
		}
	}
	return 0, false
}

func (e *Engine) hasOtherReadyLocked(excludePID int) bool {
	for _, pid := range e.order {
		if pid != excludePID && e.processes[pid].State == StateReady {
			return true
		}
	}
	return false
}

func (e *Engine) indexOfLocked(pid int) int {
	for i, p := range e.order {
		if p == pid {
			return i
		}
	}
	return -1
}

// spawnBatchLocked synthesizes and inserts one auto-created process, per
// §4.3 step 8. Caller must hold e.mu.
func (e *Engine) spawnBatchLocked() {
	mem := e.randomMemory()
	program := e.randomProgramLocked()
	name := fmt.Sprintf("auto_process_%d", e.clock)
	e.insertProcessLocked(name, mem, program)
}
