package engine

// Snapshot is an immutable view of one process, taken under the
// process-table lock, safe to hand to a caller outside that lock.
type Snapshot struct {
	PID               int
	Name              string
	State             State
	PC                int
	TotalInstructions int
	Logs              []string
	MemoryRequired    int
	ViolationAddr     int
	StateCounts       map[State]uint64
	StateTicks        map[State]uint64
}

func snapshotOf(p *Process) Snapshot {
	logs := append([]string(nil), p.Logs...)
	counts := make(map[State]uint64, len(p.StateCounts))
	for k, v := range p.StateCounts {
		counts[k] = v
	}
	ticks := make(map[State]uint64, len(p.StateTicks))
	for k, v := range p.StateTicks {
		ticks[k] = v
	}
	return Snapshot{
		PID:               p.PID,
		Name:              p.Name,
		State:             p.State,
		PC:                p.PC,
		TotalInstructions: len(p.Instructions),
		Logs:              logs,
		MemoryRequired:    p.MemoryRequired,
		ViolationAddr:     p.ViolationAddr,
		StateCounts:       counts,
		StateTicks:        ticks,
	}
}

// VMStatSnapshot is the counters view reported by the "vmstat" command.
type VMStatSnapshot struct {
	Clock            uint64
	TotalFrames      int
	FreeFrames       int
	UsedBytes        int
	TotalBytes       int
	PagesIn          uint64
	PagesOut         uint64
	NumCPU           int
	RunningCount     int
	CPUUtilization   float64
	ProcessesTotal   int
	ProcessesRunning int
}
