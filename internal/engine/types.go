// Package engine implements the coupled scheduling, virtual-memory, and
// instruction-execution core: the part of the emulator that actually
// contains algorithmic content. Everything else (the REPL in
// cmd/csopesy, config loading) is a thin collaborator around this
// package.
package engine

// State is one of the process lifecycle states. Modeled on the teaching
// corpus's Estado string enum (kernel/internal/entities.go), trimmed to
// the states this spec actually names.
type State string

const (
	StateReady          State = "READY"
	StateRunning        State = "RUNNING"
	StateSleeping       State = "SLEEPING"
	StateFinished       State = "FINISHED"
	StateMemoryViolated State = "MEMORY_VIOLATED"
)

// frameNone is the page-table entry sentinel for "no frame assigned".
const frameNone = -1

// PageTableEntry is one row of a process's page table.
type PageTableEntry struct {
	FrameNum     int
	Valid        bool
	Dirty        bool
	LastAccessed uint64
}

// Process is one simulated program: its instruction stream, its
// execution cursor, its private virtual address space bookkeeping, and
// the console lines it has printed.
type Process struct {
	PID  int
	Name string

	State State
	PC    int

	Instructions []Instruction
	Logs         []string

	SleepCounter int

	MemoryRequired int

	SymbolTable  map[string]int
	SymbolCursor int

	PageTable map[int]*PageTableEntry

	// StateTicks and StateCounts are the supplemented per-process
	// metrics from SPEC_FULL.md §12, grounded on the teacher's
	// PCB.MetricasTiempo / MetricasEstado maps.
	StateTicks  map[State]uint64
	StateCounts map[State]uint64

	// ViolationAddr records the address that triggered a MEMORY_VIOLATED
	// transition, for the mandatory console line.
	ViolationAddr int
}

func newProcess(pid int, name string, memoryRequired int, instructions []Instruction) *Process {
	return &Process{
		PID:            pid,
		Name:           name,
		State:          StateReady,
		Instructions:   instructions,
		MemoryRequired: memoryRequired,
		SymbolTable:    make(map[string]int),
		PageTable:      make(map[int]*PageTableEntry),
		StateTicks:     make(map[State]uint64),
		StateCounts:    map[State]uint64{StateReady: 1},
	}
}

// pageTableEntry returns the entry for pageNum, creating an invalid one
// lazily on first reference — page-table entries are created lazily on
// first access, per the data model.
func (p *Process) pageTableEntry(pageNum int) *PageTableEntry {
	pte, ok := p.PageTable[pageNum]
	if !ok {
		pte = &PageTableEntry{FrameNum: frameNone}
		p.PageTable[pageNum] = pte
	}
	return pte
}

// setState transitions the process to next, bumping the supplemented
// per-state counters. Terminal states (FINISHED, MEMORY_VIOLATED) never
// transition further; callers must not call setState again afterwards.
func (p *Process) setState(next State) {
	p.State = next
	p.StateCounts[next]++
}
