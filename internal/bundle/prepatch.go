package bundle

import (
	"path/filepath"
	"slices"

	"github.com/pkg/errors"

	"github.com/MasterScott/LLDBagility/internal/config"
	"github.com/MasterScott/LLDBagility/internal/installname"
	"github.com/MasterScott/LLDBagility/internal/ldd"
	"github.com/MasterScott/LLDBagility/pkg/log"
	"github.com/MasterScott/LLDBagility/util/fileutil"
)

// PrePatcher applies the framework patch table to the application
// bundle.
type PrePatcher struct {
	Inspector ldd.Inspector
	Rewriter  installname.Rewriter
	Patches   []config.FrameworkPatch
}

// Apply applies the patches in table order and returns the number of
// rewrites. A patch whose old reference is not recorded in the target
// was applied by a previous run and is skipped. A missing target means
// the bundle layout doesn't match the table, which is an error.
func (p *PrePatcher) Apply(appDir string) (int, error) {
	count := 0
	for _, patch := range p.Patches {
		target := filepath.Join(appDir, filepath.FromSlash(patch.Target))
		if !fileutil.IsRegularFile(target) {
			return count, errors.Errorf("Framework patch target %s does not exist, the patch table does not match the bundle layout", target)
		}

		refs, err := p.Inspector.References(target)
		if err != nil {
			return count, err
		}
		if !slices.Contains(refs, patch.Old) {
			log.Debugf("Skipping patch %s: reference not present", patch)
			continue
		}

		log.Debugf("Applying patch %s", patch)
		err = p.Rewriter.Change(patch.Old, patch.New, target)
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
