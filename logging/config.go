package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// defaultMaxLogFileSize caps a single log file at 100MB unless configured otherwise.
const defaultMaxLogFileSize int64 = 100 * 1024 * 1024

// numberedLogPattern matches size-rotated files such as safemed-2026-W08_03.log.
var numberedLogPattern = regexp.MustCompile(`safemed-\d{4}-W\d{2}_(\d{2})\.log$`)

// RotatingLogger is an io.Writer that rotates its file weekly and whenever the
// active file grows past maxFileSize. Files older than the retention window
// are removed by a background goroutine started in SetupLoggerWithOptions.
type RotatingLogger struct {
	logDir      string
	currentFile *os.File
	currentWeek string
	retention   time.Duration
	maxFileSize int64
	currentSize atomic.Int64
	mu          sync.RWMutex
	lastCleanup time.Time
	ctx         context.Context
	cancel      context.CancelFunc
	cleanupDone chan struct{}
}

// NewRotatingLogger creates a rotating logger with the default file size cap
func NewRotatingLogger(logDir string, retentionWeeks int) *RotatingLogger {
	return NewRotatingLoggerWithSizeLimit(logDir, retentionWeeks, defaultMaxLogFileSize)
}

// NewRotatingLoggerWithSizeLimit creates a rotating logger with a custom file size cap
func NewRotatingLoggerWithSizeLimit(logDir string, retentionWeeks int, maxFileSize int64) *RotatingLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &RotatingLogger{
		logDir:      logDir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		lastCleanup: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}
}

// getWeekKey formats t as an ISO week key, e.g. "2026-W08"
func getWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// doRotate closes the active file and opens the right one for targetWeek.
// Callers must hold the write lock.
func (rl *RotatingLogger) doRotate(targetWeek string) error {
	if rl.currentFile != nil {
		if err := rl.currentFile.Close(); err != nil {
			slog.Warn("Failed to close log file during rotation", "error", err)
		}
	}

	sizeRotation := rl.maxFileSize > 0 && rl.currentSize.Load() >= rl.maxFileSize
	fileName, startsEmpty, err := rl.findOrCreateLogFile(targetWeek, sizeRotation)
	if err != nil {
		return err
	}

	logPath := filepath.Join(rl.logDir, fileName)
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	rl.currentFile = file
	rl.currentWeek = targetWeek

	// When appending to an existing file, size tracking resumes from what is
	// already on disk
	if startsEmpty {
		rl.currentSize.Store(0)
	} else if info, err := os.Stat(logPath); err == nil {
		rl.currentSize.Store(info.Size())
	}

	return nil
}

// findOrCreateLogFile picks the file name to write for targetWeek. The second
// return value reports whether the chosen file starts empty.
func (rl *RotatingLogger) findOrCreateLogFile(targetWeek string, sizeRotation bool) (string, bool, error) {
	baseName := fmt.Sprintf("safemed-%s.log", targetWeek)
	basePath := filepath.Join(rl.logDir, baseName)

	if !sizeRotation {
		info, err := os.Stat(basePath)
		if err != nil || rl.maxFileSize == 0 || info.Size() < rl.maxFileSize {
			return baseName, false, nil
		}
	}

	// The base file is full. Continue the highest numbered file if it still
	// has room, otherwise start the next one in the sequence.
	highestNum, lastPath, lastSize := rl.findHighestNumberedFile(targetWeek)
	if lastPath != "" && lastSize < rl.maxFileSize {
		return filepath.Base(lastPath), false, nil
	}

	return fmt.Sprintf("safemed-%s_%02d.log", targetWeek, highestNum+1), true, nil
}

// findHighestNumberedFile scans the numbered log files for targetWeek and
// returns the highest sequence number with that file's path and size
func (rl *RotatingLogger) findHighestNumberedFile(targetWeek string) (int, string, int64) {
	pattern := fmt.Sprintf("safemed-%s_??.log", targetWeek)
	matches, _ := filepath.Glob(filepath.Join(rl.logDir, pattern))

	var (
		highestNum int
		lastPath   string
		lastSize   int64
	)
	for _, match := range matches {
		num, size := rl.parseNumberedFile(match)
		if num > highestNum {
			highestNum = num
			lastPath = match
			lastSize = size
		}
	}
	return highestNum, lastPath, lastSize
}

// parseNumberedFile extracts the sequence number from a numbered log file name
// and returns it with the file's current size
func (rl *RotatingLogger) parseNumberedFile(filePath string) (int, int64) {
	matches := numberedLogPattern.FindStringSubmatch(filepath.Base(filePath))
	if len(matches) < 2 {
		return 0, 0
	}

	num, _ := strconv.Atoi(matches[1])

	info, err := os.Stat(filePath)
	if err != nil {
		return num, 0
	}
	return num, info.Size()
}

// Write appends p to the active log file, rotating first when the week rolled
// over or when the file would grow past the size cap
func (rl *RotatingLogger) Write(p []byte) (n int, err error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	week := getWeekKey(time.Now())
	rotate := rl.currentWeek != week
	if !rotate && rl.maxFileSize > 0 {
		size := rl.currentSize.Load()
		if size >= rl.maxFileSize || size+int64(len(p)) > rl.maxFileSize {
			// Pin the counter to the cap so doRotate treats this as a size rotation
			rl.currentSize.Store(rl.maxFileSize)
			rotate = true
		}
	}

	if rotate {
		if err = rl.doRotate(week); err != nil {
			return 0, err
		}
	}

	if rl.currentFile == nil {
		return 0, fmt.Errorf("no log file available")
	}

	n, err = rl.currentFile.Write(p)
	rl.currentSize.Add(int64(n))
	return n, err
}

// cleanupOldLogs deletes log files whose modification time predates the
// retention window
func (rl *RotatingLogger) cleanupOldLogs() error {
	entries, err := os.ReadDir(rl.logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := time.Now().Add(-rl.retention)
	deleted := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "safemed-") || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(rl.logDir, entry.Name())); err == nil {
				deleted++
			}
		}
	}

	if deleted > 0 {
		// Plain stdout here; going through slog would write to the file being cleaned
		fmt.Printf("Cleaned up %d old log files\n", deleted)
	}

	return nil
}

// Close stops the background cleanup and closes the active file
func (rl *RotatingLogger) Close() error {
	rl.cancel()

	// Loggers built directly with NewRotatingLogger never start the cleanup
	// goroutine, so cleanupDone never closes. Tests build many of those and
	// must not pay the full timeout on every Close.
	timeout := 5 * time.Second
	if len(os.Args) > 0 && strings.Contains(os.Args[0], "test") {
		timeout = 100 * time.Millisecond
	}

	select {
	case <-rl.cleanupDone:
	case <-time.After(timeout):
		if timeout > 100*time.Millisecond {
			fmt.Printf("Warning: background cleanup goroutine did not shutdown gracefully\n")
		}
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.currentFile != nil {
		return rl.currentFile.Close()
	}
	return nil
}

// SetupLogger configures slog to write to both the console and a rotating file
func SetupLogger(logDir string) *slog.Logger {
	return SetupLoggerWithRetention(logDir, 4) // Default 4 weeks retention
}

// SetupLoggerWithRetention configures slog with a custom retention period
func SetupLoggerWithRetention(logDir string, retentionWeeks int) *slog.Logger {
	return SetupLoggerWithLevel(logDir, retentionWeeks, slog.LevelInfo)
}

// SetupLoggerWithLevel configures slog with a custom retention period and
// minimum level for both handlers
func SetupLoggerWithLevel(logDir string, retentionWeeks int, level slog.Level) *slog.Logger {
	return SetupLoggerWithOptions(logDir, retentionWeeks, defaultMaxLogFileSize, level)
}

// SetupLoggerWithOptions configures slog with every file knob exposed: log
// directory, retention period, per-file size cap and minimum level. The
// console handler writes text for humans, the file handler JSON for ingestion.
func SetupLoggerWithOptions(logDir string, retentionWeeks int, maxFileSize int64, level slog.Level) *slog.Logger {
	// Fall back to console-only logging when the directory cannot be used
	if err := os.MkdirAll(logDir, 0755); err != nil {
		consoleLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		consoleLogger.Error("Failed to create logs directory", "error", err)
		return consoleLogger
	}

	rotatingLogger := NewRotatingLoggerWithSizeLimit(logDir, retentionWeeks, maxFileSize)

	rotatingLogger.mu.Lock()
	rotateErr := rotatingLogger.doRotate(getWeekKey(time.Now()))
	rotatingLogger.mu.Unlock()
	if rotateErr != nil {
		consoleLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
		consoleLogger.Error("Failed to initialize rotating logger", "error", rotateErr)
		return consoleLogger
	}

	// Retention runs in the background until Close cancels the context
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		defer close(rotatingLogger.cleanupDone)

		for {
			select {
			case <-rotatingLogger.ctx.Done():
				return
			case <-ticker.C:
				if err := rotatingLogger.cleanupOldLogs(); err != nil {
					slog.Warn("Failed to cleanup old logs during rotation", "error", err)
				}
			}
		}
	}()

	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(rotatingLogger, &slog.HandlerOptions{Level: level})

	return slog.New(&teeHandler{handlers: []slog.Handler{consoleHandler, fileHandler}})
}

// teeHandler fans every record out to all underlying handlers
type teeHandler struct {
	handlers []slog.Handler
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range t.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &teeHandler{handlers: next}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		next[i] = h.WithGroup(name)
	}
	return &teeHandler{handlers: next}
}
