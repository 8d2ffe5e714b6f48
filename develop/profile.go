// Package develop writes runtime profiles while the client runs in debug mode.
package develop

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	CPU_PROFILE  = "cpu.prof"
	HEAP_PROFILE = "mem.prof"
)

type Profile struct {
	dir     string
	cpuFile *os.File
}

// ProfileInit starts CPU profiling into dir. The heap profile is written by Stop.
func ProfileInit(dir string) (*Profile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile dir: %w", err)
	}

	cpuf, err := os.Create(filepath.Join(dir, CPU_PROFILE))
	if err != nil {
		return nil, err
	}
	if err := pprof.StartCPUProfile(cpuf); err != nil {
		cpuf.Close()
		return nil, fmt.Errorf("failed to start cpu profile: %w", err)
	}
	zap.S().Debugf("Profiling into %s", dir)

	return &Profile{
		dir:     dir,
		cpuFile: cpuf,
	}, nil
}

// Stop ends CPU profiling and snapshots the heap.
func (p *Profile) Stop() error {
	pprof.StopCPUProfile()
	err := p.cpuFile.Close()

	memf, cerr := os.Create(filepath.Join(p.dir, HEAP_PROFILE))
	if cerr != nil {
		return multierr.Append(err, cerr)
	}
	err = multierr.Append(err, pprof.WriteHeapProfile(memf))
	return multierr.Append(err, memf.Close())
}
