package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mike-jgo/csopesy-mp/internal/logging"
)

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	ass := assert.New(t)
	log := logging.BuildLogger("error")

	cfg := Load(filepath.Join(t.TempDir(), "does-not-exist.txt"), log)

	ass.Equal(Defaults(), cfg)
}

func TestLoad_ParsesRecognizedKeys(t *testing.T) {
	ass := assert.New(t)
	log := logging.BuildLogger("error")

	path := filepath.Join(t.TempDir(), "config.txt")
	content := "num-cpu 8\n" +
		"scheduler FCFS\n" +
		"quantum-cycles 4\n" +
		"batch-process-freq 5\n" +
		"min-ins 2\n" +
		"max-ins 20\n" +
		"delays-per-exec 0\n" +
		"max-overall-mem 1024\n" +
		"mem-per-frame 32\n" +
		"min-mem-per-proc 64\n" +
		"max-mem-per-proc 256\n" +
		"# a comment line\n" +
		"\n"
	ass.NoError(os.WriteFile(path, []byte(content), 0o644))

	cfg := Load(path, log)

	ass.Equal(8, cfg.NumCPU)
	ass.Equal("fcfs", cfg.Scheduler)
	ass.Equal(4, cfg.QuantumCycles)
	ass.Equal(5, cfg.BatchProcessFreq)
	ass.Equal(2, cfg.MinIns)
	ass.Equal(20, cfg.MaxIns)
	ass.Equal(0, cfg.DelaysPerExec)
	ass.Equal(1024, cfg.MaxOverallMem)
	ass.Equal(32, cfg.MemPerFrame)
	ass.Equal(64, cfg.MinMemPerProc)
	ass.Equal(256, cfg.MaxMemPerProc)
	ass.Equal(32, cfg.NumFrames())
}

func TestLoad_UnrecognizedSchedulerDefaultsToRR(t *testing.T) {
	ass := assert.New(t)
	log := logging.BuildLogger("error")

	path := filepath.Join(t.TempDir(), "config.txt")
	ass.NoError(os.WriteFile(path, []byte("scheduler round-robin-ish\n"), 0o644))

	cfg := Load(path, log)

	ass.Equal("rr", cfg.Scheduler)
}

func TestLoad_UnrecognizedKeyIsIgnored(t *testing.T) {
	ass := assert.New(t)
	log := logging.BuildLogger("error")

	path := filepath.Join(t.TempDir(), "config.txt")
	ass.NoError(os.WriteFile(path, []byte("num-cpu 2\nnot-a-real-key 99\n"), 0o644))

	cfg := Load(path, log)

	ass.Equal(2, cfg.NumCPU)
}

func TestConfig_NumFrames(t *testing.T) {
	ass := assert.New(t)

	tests := []struct {
		name     string
		cfg      Config
		expected int
	}{
		{"even split", Config{MaxOverallMem: 16384, MemPerFrame: 16}, 1024},
		{"zero frame size", Config{MaxOverallMem: 100, MemPerFrame: 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ass.Equal(tt.expected, tt.cfg.NumFrames())
		})
	}
}
