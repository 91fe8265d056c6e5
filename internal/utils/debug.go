package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	debugOnce sync.Once
	debugFile *os.File
	debugMu   sync.Mutex
	debugDir  string
)

// ConfigureDebug sets the directory where the debug log file is created.
// Must be called before the first Debug call to take effect.
func ConfigureDebug(logsDir string) {
	debugMu.Lock()
	debugDir = logsDir
	debugMu.Unlock()
}

// Debug appends a timestamped message to the debug log file.
// The file is created lazily on first use; failures are silent because
// debug logging must never interfere with parsing.
func Debug(format string, args ...any) {
	debugOnce.Do(func() {
		debugMu.Lock()
		dir := debugDir
		debugMu.Unlock()
		if dir == "" {
			dir = os.TempDir()
		}
		name := fmt.Sprintf("debug-%s.log", time.Now().Format("20060102-150405"))
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			debugFile = f
		}
	})

	debugMu.Lock()
	defer debugMu.Unlock()
	if debugFile == nil {
		return
	}
	fmt.Fprintf(debugFile, "[%s] %s\n", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))
}
