package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/pterm/pterm"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Output is the writer all log messages are printed to. Progress
// spinners and log messages share it so that they don't interleave
// with the output of external tools on stdout.
var Output io.Writer = os.Stderr

var (
	verbose bool

	fileMutex sync.Mutex
	logFile   io.WriteCloser
)

func EnableDebugOutput() {
	verbose = true
}

func DisableDebugOutput() {
	verbose = false
}

func IsDebugEnabled() bool {
	return verbose
}

// SetLogFile mirrors every log message (including debug messages) to
// the given file. The file is rotated once it grows beyond maxSizeMB.
func SetLogFile(path string, maxSizeMB int) {
	fileMutex.Lock()
	defer fileMutex.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		Compress:   true,
	}
}

// CloseLogFile stops mirroring log messages to a file.
func CloseLogFile() error {
	fileMutex.Lock()
	defer fileMutex.Unlock()
	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return errors.WithStack(err)
}

func writeToFile(level, msg string) {
	fileMutex.Lock()
	defer fileMutex.Unlock()
	if logFile == nil {
		return
	}
	_, _ = fmt.Fprintf(logFile, "[%s] %s\n", level, strings.TrimRight(msg, "\n"))
}

func log(style *pterm.Style, icon, level string, a ...any) {
	msg := fmt.Sprint(a...)
	writeToFile(level, msg)
	s := icon + msg
	if style != nil {
		s = style.Sprint(s)
	}
	_, _ = fmt.Fprintln(Output, s)
}

// Successf highlights a message as successful
func Successf(format string, a ...any) {
	Success(fmt.Sprintf(format, a...))
}

func Success(a ...any) {
	log(&pterm.Style{pterm.FgGreen}, "✅ ", "success", a...)
}

// Warnf highlights a message as a warning
func Warnf(format string, a ...any) {
	Warn(fmt.Sprintf(format, a...))
}

func Warn(a ...any) {
	log(&pterm.Style{pterm.Bold, pterm.FgYellow}, "⚠️ ", "warn", a...)
}

// Notef highlights a message as a note
func Notef(format string, a ...any) {
	Note(fmt.Sprintf(format, a...))
}

func Note(a ...any) {
	log(&pterm.Style{pterm.Bold}, "", "note", a...)
}

// Errorf highlights a message as an error and shows the stack strace if the --verbose flag is active
func Errorf(err error, format string, a ...any) {
	Error(err, fmt.Sprintf(format, a...))
}

// Error highlights a message as an error and shows the stack strace if the --verbose flag is active
func Error(err error, a ...any) {
	var msg string
	if len(a) > 0 {
		msg = fmt.Sprint(a...)
	} else if err != nil {
		msg = err.Error()
	}
	if verbose && err != nil {
		msg = fmt.Sprintf("%s\n%+v", msg, err)
	}
	log(&pterm.Style{pterm.Bold, pterm.FgRed}, "❌ ", "error", msg)
}

// ErrorMsgf highlights a message as an error without an underlying error value
func ErrorMsgf(format string, a ...any) {
	log(&pterm.Style{pterm.Bold, pterm.FgRed}, "❌ ", "error", fmt.Sprintf(format, a...))
}

// Infof outputs a regular user message without any highlighting
func Infof(format string, a ...any) {
	Info(fmt.Sprintf(format, a...))
}

func Info(a ...any) {
	log(nil, "", "info", a...)
}

// Debugf outputs additional information when the --verbose flag is active
func Debugf(format string, a ...any) {
	Debug(fmt.Sprintf(format, a...))
}

func Debug(a ...any) {
	if !verbose {
		writeToFile("debug", fmt.Sprint(a...))
		return
	}
	log(&pterm.Style{pterm.FgGray}, "🔍 ", "debug", a...)
}

// Printf writes without any colors
func Printf(format string, a ...any) {
	Print(fmt.Sprintf(format, a...))
}

// Print writes without any colors
func Print(a ...any) {
	log(nil, "", "print", a...)
}
