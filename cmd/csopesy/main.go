// Command csopesy is the interactive command prompt described by the
// external command surface: a single REPL, driving one in-process
// engine, with no network listener. The teaching corpus splits kernel,
// cpu, memoria and io into four HTTP services wired together over
// net/http; this project's external interfaces are declared entirely
// out of process by design, so the REPL replaces that HTTP mux with a
// bufio.Scanner reading stdin, and every "endpoint" the kernel exposed
// (create process, list processes, inspect memory) becomes a command
// dispatched straight into the engine.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mike-jgo/csopesy-mp/internal/config"
	"github.com/mike-jgo/csopesy-mp/internal/engine"
	"github.com/mike-jgo/csopesy-mp/internal/logging"
)

func main() {
	log := logging.BuildLogger(os.Getenv("CSOPESY_LOG_LEVEL"))

	repl := &shell{
		log:    log,
		out:    os.Stdout,
		reader: bufio.NewScanner(os.Stdin),
	}
	repl.run()
}

type shell struct {
	log     *slog.Logger
	out     *os.File
	reader  *bufio.Scanner
	eng     *engine.Engine
	running bool
}

func (s *shell) run() {
	fmt.Fprintln(s.out, "csopesy emulator. type 'initialize <config-path>' to begin, 'exit' to quit.")
	for {
		fmt.Fprint(s.out, "> ")
		if !s.reader.Scan() {
			return
		}
		line := strings.TrimSpace(s.reader.Text())
		if line == "" {
			continue
		}
		if !s.dispatch(line) {
			return
		}
	}
}

// dispatch executes one REPL line, returning false to end the session.
func (s *shell) dispatch(line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]

	switch cmd {
	case "exit":
		if s.eng != nil {
			s.eng.Stop()
		}
		return false

	case "initialize":
		if len(fields) < 2 {
			fmt.Fprintln(s.out, "usage: initialize <config-path>")
			return true
		}
		s.initialize(fields[1])

	case "screen":
		s.screen(fields[1:], line)

	case "scheduler-start":
		if !s.requireInit() {
			return true
		}
		s.eng.StartAutoCreate()
		fmt.Fprintln(s.out, "batch process creation started")

	case "scheduler-stop":
		if !s.requireInit() {
			return true
		}
		s.eng.StopAutoCreate()
		fmt.Fprintln(s.out, "batch process creation stopped")

	case "process-smi":
		s.processSMI()

	case "vmstat":
		s.vmstat()

	case "step":
		if len(fields) < 2 || !s.requireInit() {
			fmt.Fprintln(s.out, "usage: step <name>")
			return true
		}
		snap, err := s.eng.Step(fields[1])
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
			return true
		}
		fmt.Fprintf(s.out, "%s pc=%d/%d state=%s\n", snap.Name, snap.PC, snap.TotalInstructions, snap.State)

	default:
		fmt.Fprintf(s.out, "unrecognized command %q\n", cmd)
	}
	return true
}

func (s *shell) requireInit() bool {
	if s.eng == nil {
		fmt.Fprintln(s.out, "not initialized. run 'initialize <config-path>' first.")
		return false
	}
	return true
}

func (s *shell) initialize(path string) {
	cfg := config.Load(path, s.log)
	s.eng = engine.NewEngine(cfg, s.log)
	go s.eng.Run()
	fmt.Fprintf(s.out, "initialized: num-cpu=%d scheduler=%s quantum-cycles=%d frames=%d\n",
		cfg.NumCPU, cfg.Scheduler, cfg.QuantumCycles, cfg.NumFrames())
}

// screen implements "screen -s <name> <mem>", "screen -c <name> <mem>
// \"<instructions>\"", "screen -r <name>", and "screen -ls".
func (s *shell) screen(args []string, rawLine string) {
	if !s.requireInit() {
		return
	}
	if len(args) == 0 {
		fmt.Fprintln(s.out, "usage: screen -s|-c|-r|-ls ...")
		return
	}

	switch args[0] {
	case "-ls":
		for _, snap := range s.eng.ListSnapshot() {
			fmt.Fprintf(s.out, "%-16s pid=%-4d state=%-16s pc=%d/%d mem=%d\n",
				snap.Name, snap.PID, snap.State, snap.PC, snap.TotalInstructions, snap.MemoryRequired)
		}

	case "-s":
		if len(args) < 3 {
			fmt.Fprintln(s.out, "usage: screen -s <name> <mem>")
			return
		}
		mem, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Fprintln(s.out, "invalid memory size:", args[2])
			return
		}
		snap, err := s.eng.CreateProcess(args[1], mem, nil)
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
			return
		}
		fmt.Fprintf(s.out, "created %s (pid %d)\n", snap.Name, snap.PID)

	case "-c":
		if len(args) < 3 {
			fmt.Fprintln(s.out, "usage: screen -c <name> <mem> \"<instructions>\"")
			return
		}
		mem, err := strconv.Atoi(args[2])
		if err != nil {
			fmt.Fprintln(s.out, "invalid memory size:", args[2])
			return
		}
		program := extractQuoted(rawLine)
		instructions, err := engine.ParseProgram(program, true)
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
			return
		}
		snap, err := s.eng.CreateProcess(args[1], mem, instructions)
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
			return
		}
		fmt.Fprintf(s.out, "created %s (pid %d)\n", snap.Name, snap.PID)

	case "-r":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "usage: screen -r <name>")
			return
		}
		snap, err := s.eng.FindProcess(args[1])
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
			return
		}
		fmt.Fprintf(s.out, "%s pid=%d state=%s pc=%d/%d\n", snap.Name, snap.PID, snap.State, snap.PC, snap.TotalInstructions)
		for _, l := range snap.Logs {
			fmt.Fprintln(s.out, l)
		}

	default:
		fmt.Fprintf(s.out, "unrecognized screen option %q\n", args[0])
	}
}

// extractQuoted pulls out the double-quoted instruction batch from a
// raw "screen -c name mem \"...\"" line.
func extractQuoted(line string) string {
	first := strings.IndexByte(line, '"')
	last := strings.LastIndexByte(line, '"')
	if first < 0 || last <= first {
		return ""
	}
	return line[first+1 : last]
}

func (s *shell) processSMI() {
	if !s.requireInit() {
		return
	}
	vm := s.eng.VMStat()
	fmt.Fprintf(s.out, "CPU utilization: %.0f%%\n", vm.CPUUtilization*100)
	fmt.Fprintf(s.out, "Memory used: %d / %d bytes\n", vm.UsedBytes, vm.TotalBytes)
	for _, snap := range s.eng.ListSnapshot() {
		fmt.Fprintf(s.out, "%-16s %-16s pc=%d/%d\n", snap.Name, snap.State, snap.PC, snap.TotalInstructions)
	}
}

func (s *shell) vmstat() {
	if !s.requireInit() {
		return
	}
	vm := s.eng.VMStat()
	fmt.Fprintf(s.out, "clock: %d\n", vm.Clock)
	fmt.Fprintf(s.out, "total frames: %d  free frames: %d\n", vm.TotalFrames, vm.FreeFrames)
	fmt.Fprintf(s.out, "used bytes: %d / %d\n", vm.UsedBytes, vm.TotalBytes)
	fmt.Fprintf(s.out, "pages in: %d  pages out: %d\n", vm.PagesIn, vm.PagesOut)
	fmt.Fprintf(s.out, "processes: %d  running: %d  cpu util: %.2f\n", vm.ProcessesTotal, vm.RunningCount, vm.CPUUtilization)
}
