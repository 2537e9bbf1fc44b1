// Package prof wraps the runtime profilers for the CLI's --cpuprofile,
// --memprofile and --runtime-trace flags.
package prof

import (
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Session holds open profile outputs until Stop. The zero value is a
// no-op session; Stop on it does nothing.
type Session struct {
	cpuFile   *os.File
	traceFile *os.File
	memPath   string
}

// Start opens whichever profiles have non-empty paths. On error every
// already-started profile is stopped again.
func Start(cpuPath, memPath, tracePath string) (*Session, error) {
	s := &Session{memPath: memPath}
	if cpuPath != "" {
		f, err := os.Create(cpuPath)
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, err
		}
		s.cpuFile = f
	}
	if tracePath != "" {
		f, err := os.Create(tracePath)
		if err != nil {
			s.Stop()
			return nil, err
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			s.Stop()
			return nil, err
		}
		s.traceFile = f
	}
	return s, nil
}

// Stop closes the CPU profile and runtime trace and, if requested,
// captures the heap profile. Returns the first write error.
func (s *Session) Stop() error {
	if s == nil {
		return nil
	}
	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		_ = s.cpuFile.Close()
		s.cpuFile = nil
	}
	if s.traceFile != nil {
		trace.Stop()
		_ = s.traceFile.Close()
		s.traceFile = nil
	}
	if s.memPath != "" {
		path := s.memPath
		s.memPath = ""
		return writeHeap(path)
	}
	return nil
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
