// Package config loads the emulator's key-value configuration file.
//
// The teaching corpus's utils/config package decodes JSON with
// encoding/json and panics on any error. This project's config format is
// a flat "key value" text file (one pair per line), so the parsing body
// is different, but the overall shape survives: a loader that opens a
// file, logs structured errors through the same logging package as the
// rest of the engine, and returns a populated struct. Unlike the
// teacher, a missing or malformed file is not fatal here — it falls back
// to documented defaults, per the spec's "regenerate defaults and
// reload" rule.
package config

import (
	"bufio"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mike-jgo/csopesy-mp/internal/logging"
)

// Config mirrors every key-value pair the external interface recognizes.
type Config struct {
	NumCPU           int
	Scheduler        string // "rr" or "fcfs"
	QuantumCycles    int
	BatchProcessFreq int
	MinIns           int
	MaxIns           int
	DelaysPerExec    int
	MaxOverallMem    int
	MemPerFrame      int
	MinMemPerProc    int
	MaxMemPerProc    int
}

// Defaults returns the configuration regenerated whenever the config file
// is missing or unparsable.
func Defaults() Config {
	return Config{
		NumCPU:           4,
		Scheduler:        "rr",
		QuantumCycles:    2,
		BatchProcessFreq: 3,
		MinIns:           5,
		MaxIns:           10,
		DelaysPerExec:    1,
		MaxOverallMem:    16384,
		MemPerFrame:      16,
		MinMemPerProc:    4096,
		MaxMemPerProc:    4096,
	}
}

// NumFrames derives the frame count from the physical memory and frame
// size, as required by the "mem-per-frame" row of the configuration table.
func (c Config) NumFrames() int {
	if c.MemPerFrame <= 0 {
		return 0
	}
	return c.MaxOverallMem / c.MemPerFrame
}

// Load reads path and returns a Config, never panicking — config parsing
// is an ambient concern here, not something a malformed run should die
// over. A file that cannot be opened or read, or that holds no recognized
// key, is logged and answered with Defaults(). Otherwise each recognized
// key overrides its default: malformed lines and unrecognized keys are
// logged and skipped, and a recognized key whose value does not parse is
// skipped without a log line, keeping its default.
func Load(path string, log *slog.Logger) Config {
	f, err := os.Open(path)
	if err != nil {
		log.Warn("no se pudo abrir el archivo de configuración, usando valores por defecto",
			logging.StringAttr("path", path),
			logging.ErrAttr(err),
		)
		return Defaults()
	}
	defer func() {
		_ = f.Close()
	}()

	cfg := Defaults()
	sawPair := false

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			log.Warn("línea de configuración malformada, ignorada",
				logging.StringAttr("line", line),
			)
			continue
		}

		key, value := fields[0], fields[1]
		if applyKey(&cfg, key, value, log) {
			sawPair = true
		}
	}

	if err := scanner.Err(); err != nil {
		log.Warn("error leyendo el archivo de configuración, usando valores por defecto",
			logging.ErrAttr(err),
		)
		return Defaults()
	}

	if !sawPair {
		log.Warn("archivo de configuración vacío o sin claves reconocidas, usando valores por defecto")
		return Defaults()
	}

	return cfg
}

func applyKey(cfg *Config, key, value string, log *slog.Logger) bool {
	switch key {
	case "num-cpu":
		if n, ok := parsePositiveInt(value); ok {
			cfg.NumCPU = n
			return true
		}
	case "scheduler":
		lower := strings.ToLower(value)
		if lower == "rr" || lower == "fcfs" {
			cfg.Scheduler = lower
			return true
		}
		log.Warn("scheduler desconocido, usando rr por defecto", logging.StringAttr("scheduler", value))
		cfg.Scheduler = "rr"
		return true
	case "quantum-cycles":
		if n, ok := parsePositiveInt(value); ok {
			cfg.QuantumCycles = n
			return true
		}
	case "batch-process-freq":
		if n, ok := parsePositiveInt(value); ok {
			cfg.BatchProcessFreq = n
			return true
		}
	case "min-ins":
		if n, ok := parseInt(value); ok {
			cfg.MinIns = n
			return true
		}
	case "max-ins":
		if n, ok := parseInt(value); ok {
			cfg.MaxIns = n
			return true
		}
	case "delays-per-exec":
		if n, ok := parseInt(value); ok {
			cfg.DelaysPerExec = n
			return true
		}
	case "max-overall-mem":
		if n, ok := parsePositiveInt(value); ok {
			cfg.MaxOverallMem = n
			return true
		}
	case "mem-per-frame":
		if n, ok := parsePositiveInt(value); ok {
			cfg.MemPerFrame = n
			return true
		}
	case "min-mem-per-proc":
		if n, ok := parsePositiveInt(value); ok {
			cfg.MinMemPerProc = n
			return true
		}
	case "max-mem-per-proc":
		if n, ok := parsePositiveInt(value); ok {
			cfg.MaxMemPerProc = n
			return true
		}
	default:
		log.Warn("clave de configuración no reconocida, ignorada", logging.StringAttr("key", key))
	}
	return false
}

func parseInt(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parsePositiveInt(s string) (int, bool) {
	n, ok := parseInt(s)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}
