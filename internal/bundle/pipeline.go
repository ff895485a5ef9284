package bundle

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/MasterScott/LLDBagility/internal/cmdutils/logging"
	"github.com/MasterScott/LLDBagility/internal/config"
	"github.com/MasterScott/LLDBagility/internal/installname"
	"github.com/MasterScott/LLDBagility/internal/ldd"
)

// Pipeline makes a bundle self-contained: it patches the toolkit
// frameworks, vendors all libraries from the vendor prefixes and
// rewrites every reference to them.
type Pipeline struct {
	Layout          *Layout
	Classifier      *Classifier
	Inspector       ldd.Inspector
	Rewriter        installname.Rewriter
	Patches         []config.FrameworkPatch
	Jobs            int
	CollisionPolicy string

	// Output receives the stage labels, defaults to stderr.
	Output io.Writer
}

// Report summarizes what a pipeline run changed.
type Report struct {
	Patched   int         `json:"patched" yaml:"patched"`
	Walk      *WalkResult `json:"walk" yaml:"walk"`
	Index     *Index      `json:"index" yaml:"index"`
	Rewritten int         `json:"rewritten" yaml:"rewritten"`
}

func (p *Pipeline) output() io.Writer {
	if p.Output != nil {
		return p.Output
	}
	return os.Stderr
}

// stage runs fn with a stage label. The returned message of fn is
// shown when the stage succeeds.
func (p *Pipeline) stage(label string, fn func() (string, error)) error {
	printer := logging.NewStagePrinter(p.output(), label)
	msg, err := fn()
	if err != nil {
		printer.StopOnError(label + " failed")
		return err
	}
	printer.StopOnSuccess(msg)
	return nil
}

func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	appDir := p.Layout.AppDir()
	relinker := &Relinker{
		Inspector:  p.Inspector,
		Classifier: p.Classifier,
		Rewriter:   p.Rewriter,
		Layout:     p.Layout,
	}

	err := p.stage("Patching frameworks", func() (string, error) {
		patcher := &PrePatcher{Inspector: p.Inspector, Rewriter: p.Rewriter, Patches: p.Patches}
		var err error
		report.Patched, err = patcher.Apply(appDir)
		return fmt.Sprintf("Applied %d framework patches", report.Patched), err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage("Finding dependencies", func() (string, error) {
		walker := &Walker{
			Inspector:  p.Inspector,
			Classifier: p.Classifier,
			Layout:     p.Layout,
			Jobs:       p.Jobs,
		}
		var err error
		report.Walk, err = walker.Walk(ctx, p.Layout.OutputDir)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Found %d dependencies in %d files", len(report.Walk.Vendor), report.Walk.Visited), nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage("Saving dependencies", func() (string, error) {
		vendorer := &Vendorer{Layout: p.Layout, Rewriter: p.Rewriter, CollisionPolicy: p.CollisionPolicy}
		var err error
		report.Index, err = vendorer.Vendor(report.Walk)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Vendored %d libraries", len(report.Index.Libraries)), nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage("Patching references", func() (string, error) {
		var err error
		report.Rewritten, err = relinker.RewritePass(p.Layout.OutputDir, report.Index)
		return fmt.Sprintf("Rewrote %d references", report.Rewritten), err
	})
	if err != nil {
		return nil, err
	}

	err = p.stage("Verifying bundle", func() (string, error) {
		findings, err := relinker.Verify(p.Layout.OutputDir)
		if err != nil {
			return "", err
		}
		if len(findings) > 0 {
			var lines []string
			for _, f := range findings {
				lines = append(lines, "  "+f.String())
			}
			return "", errors.Errorf("The bundle is not self-contained, unresolved references remain after patching:\n%s", strings.Join(lines, "\n"))
		}
		return "Bundle is self-contained", nil
	})
	if err != nil {
		return nil, err
	}

	return report, nil
}
