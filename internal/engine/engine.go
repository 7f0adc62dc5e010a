package engine

import (
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/mike-jgo/csopesy-mp/internal/config"
	"github.com/mike-jgo/csopesy-mp/internal/idgen"
	"github.com/mike-jgo/csopesy-mp/internal/logging"
)

var (
	// ErrDuplicateName is returned when a process name is already in use.
	ErrDuplicateName = errors.New("a process with that name already exists")
	// ErrInvalidMemory is returned when a requested memory size is not a
	// power of two within the configured bounds.
	ErrInvalidMemory = errors.New("memory size must be a power of two within the configured bounds")
	// ErrTooManyInstructions is returned when a user-supplied batch
	// exceeds the instruction cap.
	ErrTooManyInstructions = errors.New("instruction batch exceeds the maximum of 50 instructions")
	// ErrProcessNotFound is returned by lookups on an unknown name.
	ErrProcessNotFound = errors.New("no process with that name")
)

// Engine is the single value that owns configuration, the process table,
// physical memory, and the scheduler's cores and clock — per the design
// notes' "process-wide state" decision. There are no package-level
// globals; every entry point hangs off an *Engine.
type Engine struct {
	cfg config.Config
	log *slog.Logger

	mu        sync.Mutex
	clock     uint64
	processes map[int]*Process
	order     []int
	ids       *idgen.Generator

	mem     *MemoryManager
	backing *BackingStore

	cores    []*Core
	rrCursor int

	autoCreate    bool
	lastBatchTick uint64

	rng *rand.Rand

	stopCh  chan struct{}
	running bool
}

// NewEngine constructs the engine described by cfg. It is the core's
// "initialize" operation.
func NewEngine(cfg config.Config, log *slog.Logger) *Engine {
	backing := newBackingStore()
	mem := newMemoryManager(cfg.NumFrames(), cfg.MemPerFrame, backing, log)

	cores := make([]*Core, cfg.NumCPU)
	for i := range cores {
		cores[i] = &Core{ID: i, RunningPID: noProcess}
	}

	return &Engine{
		cfg:       cfg,
		log:       log,
		processes: make(map[int]*Process),
		ids:       idgen.New(),
		mem:       mem,
		backing:   backing,
		cores:     cores,
		rng:       rand.New(rand.NewSource(1)),
		stopCh:    make(chan struct{}),
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// CreateProcess validates and inserts a new process. When program is nil
// a random instruction stream is synthesized, matching the "create"
// command's random-workload behavior; a non-nil program implements
// "create_with_instructions".
func (e *Engine) CreateProcess(name string, memoryBytes int, program []Instruction) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, pid := range e.order {
		if e.processes[pid].Name == name {
			return Snapshot{}, ErrDuplicateName
		}
	}

	if !isPowerOfTwo(memoryBytes) || memoryBytes < e.cfg.MinMemPerProc || memoryBytes > e.cfg.MaxMemPerProc {
		return Snapshot{}, ErrInvalidMemory
	}

	if program == nil {
		program = e.randomProgramLocked()
	} else if len(program) > MaxUserInstructions {
		return Snapshot{}, ErrTooManyInstructions
	}

	proc := e.insertProcessLocked(name, memoryBytes, program)
	return snapshotOf(proc), nil
}

// insertProcessLocked assigns a pid and appends a fully-validated
// process to the table. Caller must hold e.mu.
func (e *Engine) insertProcessLocked(name string, memoryBytes int, program []Instruction) *Process {
	pid := e.ids.Next()
	proc := newProcess(pid, name, memoryBytes, program)
	e.processes[pid] = proc
	e.order = append(e.order, pid)

	e.log.Info("proceso creado",
		logging.IntAttr("pid", pid),
		logging.StringAttr("name", name),
		logging.IntAttr("memory", memoryBytes),
	)

	return proc
}

// randomProgramLocked synthesizes a dummy instruction stream with a
// length in [min-ins, max-ins]. Caller must hold e.mu.
func (e *Engine) randomProgramLocked() []Instruction {
	lo, hi := e.cfg.MinIns, e.cfg.MaxIns
	if hi < lo {
		hi = lo
	}
	count := lo
	if hi > lo {
		count += e.rng.Intn(hi - lo + 1)
	}

	program := make([]Instruction, 0, count)
	program = append(program, Instruction{Op: OpDeclare, Args: []string{"x", "0"}})
	for i := 1; i < count; i++ {
		switch e.rng.Intn(3) {
		case 0:
			program = append(program, Instruction{Op: OpAdd, Args: []string{"x", "x", "1"}})
		case 1:
			program = append(program, Instruction{Op: OpPrint, Args: []string{"'x=' + x"}})
		default:
			program = append(program, Instruction{Op: OpSleep, Args: []string{"0"}})
		}
	}
	return program
}

func (e *Engine) randomMemory() int {
	lo, hi := e.cfg.MinMemPerProc, e.cfg.MaxMemPerProc
	var options []int
	for n := lo; n <= hi; n *= 2 {
		if isPowerOfTwo(n) {
			options = append(options, n)
		}
		if n == 0 {
			break
		}
	}
	if len(options) == 0 {
		return lo
	}
	return options[e.rng.Intn(len(options))]
}

// FindProcess returns the current snapshot of the named process.
func (e *Engine) FindProcess(name string) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	proc, err := e.findLocked(name)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(proc), nil
}

func (e *Engine) findLocked(name string) (*Process, error) {
	for _, pid := range e.order {
		if e.processes[pid].Name == name {
			return e.processes[pid], nil
		}
	}
	return nil, ErrProcessNotFound
}

// ListSnapshot returns every process, in creation order.
func (e *Engine) ListSnapshot() []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Snapshot, 0, len(e.order))
	for _, pid := range e.order {
		out = append(out, snapshotOf(e.processes[pid]))
	}
	return out
}

// StartAutoCreate enables batch process creation, driven from the
// scheduler tick.
func (e *Engine) StartAutoCreate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoCreate = true
}

// StopAutoCreate disables batch process creation. Processes already
// created are unaffected.
func (e *Engine) StopAutoCreate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoCreate = false
}

// Step executes exactly one instruction of the named process, outside
// the scheduler's tick loop, for manual debugging.
func (e *Engine) Step(name string) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	proc, err := e.findLocked(name)
	if err != nil {
		return Snapshot{}, err
	}
	if proc.State == StateFinished || proc.State == StateMemoryViolated {
		return snapshotOf(proc), nil
	}
	executeInstruction(e.log, e.processes, e.mem, proc, e.clock)
	return snapshotOf(proc), nil
}

// VMStat returns the counters reported by the "vmstat" command.
func (e *Engine) VMStat() VMStatSnapshot {
	e.mu.Lock()
	running := 0
	total := len(e.processes)
	for _, pid := range e.order {
		if e.processes[pid].State == StateRunning {
			running++
		}
	}
	clock := e.clock
	numCPU := e.cfg.NumCPU
	e.mu.Unlock()

	return VMStatSnapshot{
		Clock:            clock,
		TotalFrames:      e.mem.TotalFrames(),
		FreeFrames:       e.mem.FreeFrames(),
		UsedBytes:        e.mem.UsedBytes(),
		TotalBytes:       e.mem.TotalFrames() * e.cfg.MemPerFrame,
		PagesIn:          e.mem.PagesIn(),
		PagesOut:         e.mem.PagesOut(),
		NumCPU:           numCPU,
		RunningCount:     running,
		CPUUtilization:   float64(running) / float64(numCPU),
		ProcessesTotal:   total,
		ProcessesRunning: running,
	}
}

// DumpBackingStore writes the human-readable backing-store snapshot
// described by the external interface.
func (e *Engine) DumpBackingStore(w io.Writer) error {
	return e.backing.Dump(w)
}

// Run drives the scheduler tick loop until Stop is called, or (when
// auto-create is off) until every process has reached a terminal state.
// It is meant to run on its own goroutine, mirroring the teacher's
// separation between the interactive command reader and the scheduler
// driver thread.
func (e *Engine) Run() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		idle := e.tick()

		delay := 5 * time.Millisecond
		if idle {
			delay = 50 * time.Millisecond
		}
		if e.cfg.DelaysPerExec > 0 && !idle {
			delay += time.Duration(e.cfg.DelaysPerExec) * time.Millisecond
		}
		time.Sleep(delay)

		e.mu.Lock()
		done := !e.autoCreate && e.allTerminalLocked()
		e.mu.Unlock()
		if done {
			return
		}
	}
}

func (e *Engine) allTerminalLocked() bool {
	if len(e.processes) == 0 {
		return false
	}
	for _, pid := range e.order {
		st := e.processes[pid].State
		if st != StateFinished && st != StateMemoryViolated {
			return false
		}
	}
	return true
}

// Stop signals Run to exit at its next loop iteration.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.running {
		close(e.stopCh)
		e.running = false
	}
	e.mu.Unlock()
}

// Ticks returns the current clock value.
func (e *Engine) Ticks() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock
}
