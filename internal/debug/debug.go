// Package debug writes diagnostic logging to a rotated file inside the
// workspace, enabled by TETHER_DEBUG. Nothing is written when disabled, so
// normal runs leave no log file behind.
package debug

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.Mutex
	logger *log.Logger
)

// Enabled reports whether debug logging is on.
func Enabled() bool {
	return os.Getenv("TETHER_DEBUG") != ""
}

// Init points the debug log at <workspaceDir>/tether.log with rotation.
// Without TETHER_DEBUG set this is a no-op.
func Init(workspaceDir string) {
	if !Enabled() {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(&lumberjack.Logger{
		Filename:   filepath.Join(workspaceDir, "tether.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
	}, "", 0)
}

// Logf writes one timestamped line to the debug log, if enabled.
func Logf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		return
	}
	logger.Printf("%s %s", time.Now().Format(time.RFC3339), fmt.Sprintf(format, args...))
}
