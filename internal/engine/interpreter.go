package engine

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mike-jgo/csopesy-mp/internal/logging"
)

// transition moves proc to next, updating its metrics and emitting the
// mandatory state-transition log line. Grounded on the teacher's "Log
// obligatorio" comments scattered through kernel's dispatch path, which
// require one line per state change; this project's line shape differs
// (English, a "## transition" message with pid, name, from and to
// attributes) but the obligation is the same.
func transition(log *slog.Logger, proc *Process, next State) {
	prev := proc.State
	proc.setState(next)
	log.Info("## transition",
		logging.IntAttr("pid", proc.PID),
		logging.StringAttr("name", proc.Name),
		logging.StringAttr("from", string(prev)),
		logging.StringAttr("to", string(next)),
	)
}

// symbolAddress returns the virtual address bound to name, allocating a
// fresh two-byte cell at the symbol cursor if name has never been
// declared.
func (p *Process) symbolAddress(name string) int {
	if addr, ok := p.SymbolTable[name]; ok {
		return addr
	}
	addr := p.SymbolCursor
	p.SymbolTable[name] = addr
	p.SymbolCursor += 2
	return addr
}

// resolveOperand implements §4.2's resolve(token): a token that parses as
// a decimal integer is itself the value; otherwise the token names a
// variable read through the memory manager, and an undeclared variable
// resolves to zero without touching memory.
func resolveOperand(procs map[int]*Process, mem *MemoryManager, proc *Process, token string, clockTick uint64) (int, error) {
	token = strings.TrimSpace(token)
	if n, err := strconv.Atoi(token); err == nil {
		return n, nil
	}

	addr, ok := proc.SymbolTable[token]
	if !ok {
		return 0, nil
	}

	val, err := mem.AccessWord(procs, proc, addr, false, 0, clockTick)
	if err != nil {
		return 0, err
	}
	return int(val), nil
}

// parseAddress accepts a decimal or 0x-prefixed hex address literal.
func parseAddress(token string) (int, error) {
	token = strings.TrimSpace(token)
	n, err := strconv.ParseInt(token, 0, 64)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// evaluatePrint implements §4.2's PRINT semantics: segments separated by
// a top-level '+' are each either a single-quoted literal or a value
// token, concatenated in order.
func evaluatePrint(procs map[int]*Process, mem *MemoryManager, proc *Process, expr string, clockTick uint64) (string, error) {
	segments := splitTopLevel(expr, '+')
	var sb strings.Builder
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if strings.HasPrefix(seg, "'") && strings.HasSuffix(seg, "'") && len(seg) >= 2 {
			sb.WriteString(seg[1 : len(seg)-1])
			continue
		}
		val, err := resolveOperand(procs, mem, proc, seg, clockTick)
		if err != nil {
			return "", err
		}
		sb.WriteString(strconv.Itoa(val))
	}
	return sb.String(), nil
}

// faultOrRetry applies §4.2's PC-advancement rule for a failed memory
// access: a segmentation fault escalates the process to
// MEMORY_VIOLATED and records the offending address; any other failure
// leaves the process RUNNING with pc unchanged so the scheduler retries
// it next tick (per §4.1, only representable in defensive testing —
// allocation never actually fails once a frame exists).
func faultOrRetry(log *slog.Logger, proc *Process, err error, addr int) {
	if errors.Is(err, ErrSegmentationFault) {
		proc.ViolationAddr = addr
		proc.Logs = append(proc.Logs, "memory access violation at address "+strconv.Itoa(addr))
		transition(log, proc, StateMemoryViolated)
	}
}

// executeInstruction runs the instruction at proc.PC, per §4.2. It is
// the only place that mutates a process's instruction stream (FOR
// expansion), program counter, or symbol table.
func executeInstruction(log *slog.Logger, procs map[int]*Process, mem *MemoryManager, proc *Process, clockTick uint64) {
	if proc.PC >= len(proc.Instructions) {
		transition(log, proc, StateFinished)
		return
	}

	ins := proc.Instructions[proc.PC]

	switch ins.Op {
	case OpDeclare:
		name, litToken := ins.Args[0], ins.Args[1]
		lit, err := strconv.Atoi(litToken)
		if err != nil {
			lit = 0
		}
		addr := proc.symbolAddress(name)
		if _, err := mem.AccessWord(procs, proc, addr, true, clampU16(lit), clockTick); err != nil {
			faultOrRetry(log, proc, err, addr)
			return
		}
		proc.PC++

	case OpAdd, OpSubtract:
		dst, a, b := ins.Args[0], ins.Args[1], ins.Args[2]
		av, err := resolveOperand(procs, mem, proc, a, clockTick)
		if err != nil {
			faultOrRetry(log, proc, err, proc.SymbolTable[a])
			return
		}
		bv, err := resolveOperand(procs, mem, proc, b, clockTick)
		if err != nil {
			faultOrRetry(log, proc, err, proc.SymbolTable[b])
			return
		}

		result := av + bv
		if ins.Op == OpSubtract {
			result = av - bv
		}

		addr := proc.symbolAddress(dst)
		if _, err := mem.AccessWord(procs, proc, addr, true, clampU16(result), clockTick); err != nil {
			faultOrRetry(log, proc, err, addr)
			return
		}
		proc.PC++

	case OpPrint:
		text, err := evaluatePrint(procs, mem, proc, ins.Args[0], clockTick)
		if err != nil {
			faultOrRetry(log, proc, err, 0)
			return
		}
		proc.Logs = append(proc.Logs, text)
		proc.PC++

	case OpSleep:
		n, err := strconv.Atoi(ins.Args[0])
		if err != nil || n < 0 {
			n = 0
		}
		proc.SleepCounter = n
		proc.PC++
		transition(log, proc, StateSleeping)

	case OpFor:
		expanded := make([]Instruction, 0, ins.Repeats*len(ins.Body))
		for i := 0; i < ins.Repeats; i++ {
			for _, body := range ins.Body {
				expanded = append(expanded, cloneInstruction(body))
			}
		}
		rest := append([]Instruction(nil), proc.Instructions[proc.PC+1:]...)
		head := append([]Instruction(nil), proc.Instructions[:proc.PC]...)
		proc.Instructions = append(append(head, expanded...), rest...)
		// pc intentionally unchanged: the first expanded instruction runs next tick.

	case OpWrite:
		addr, err := parseAddress(ins.Args[0])
		if err != nil {
			faultOrRetry(log, proc, ErrSegmentationFault, addr)
			return
		}
		value, err := resolveOperand(procs, mem, proc, ins.Args[1], clockTick)
		if err != nil {
			faultOrRetry(log, proc, err, addr)
			return
		}
		if _, err := mem.AccessWord(procs, proc, addr, true, clampU16(value), clockTick); err != nil {
			faultOrRetry(log, proc, err, addr)
			return
		}
		proc.PC++

	case OpRead:
		varName := ins.Args[0]
		addr, err := parseAddress(ins.Args[1])
		if err != nil {
			faultOrRetry(log, proc, ErrSegmentationFault, addr)
			return
		}
		val, err := mem.AccessWord(procs, proc, addr, false, 0, clockTick)
		if err != nil {
			faultOrRetry(log, proc, err, addr)
			return
		}
		dstAddr := proc.symbolAddress(varName)
		if _, err := mem.AccessWord(procs, proc, dstAddr, true, val, clockTick); err != nil {
			faultOrRetry(log, proc, err, dstAddr)
			return
		}
		proc.PC++
	}
}
