package logging

import (
	"io"
	"os"

	"github.com/pterm/pterm"
	"golang.org/x/term"

	"github.com/MasterScott/LLDBagility/pkg/log"
)

// StagePrinter shows a spinner with a stage label (e.g. "Finding
// dependencies...") while a long-running step is in progress. When
// the output is not a terminal it prints the label once instead.
type StagePrinter struct {
	spinner *pterm.SpinnerPrinter
	label   string
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// NewStagePrinter starts a new stage. Debug output is written while
// the stage is running, so the spinner is disabled in verbose mode.
func NewStagePrinter(output io.Writer, label string) *StagePrinter {
	p := &StagePrinter{label: label}
	if !isTerminal(output) || log.IsDebugEnabled() {
		log.Info(label)
		return p
	}

	spinner, err := pterm.DefaultSpinner.WithWriter(output).WithRemoveWhenDone(false).Start(label)
	if err != nil {
		log.Info(label)
		return p
	}
	p.spinner = spinner
	return p
}

func (p *StagePrinter) StopOnSuccess(msg string) {
	if p.spinner == nil {
		if msg != "" {
			log.Success(msg)
		}
		return
	}
	if msg == "" {
		msg = p.label
	}
	p.spinner.Success(msg)
}

func (p *StagePrinter) StopOnError(msg string) {
	if p.spinner == nil {
		if msg != "" {
			log.ErrorMsgf("%s", msg)
		}
		return
	}
	if msg == "" {
		msg = p.label
	}
	p.spinner.Fail(msg)
}
