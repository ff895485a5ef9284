package bundle

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/MasterScott/LLDBagility/internal/ldd"
	"github.com/MasterScott/LLDBagility/pkg/log"
	"github.com/MasterScott/LLDBagility/util/fileutil"
)

// Walker discovers the transitive set of libraries which have to be
// vendored into a bundle.
type Walker struct {
	Inspector  ldd.Inspector
	Classifier *Classifier
	Layout     *Layout
	// Jobs is the maximum number of concurrent inspections. Values
	// below 2 walk sequentially.
	Jobs int
}

type WalkResult struct {
	// Vendor holds the recorded paths of all Vendor-classified
	// dependencies, sorted. Different paths of the same file are all
	// kept, they are merged when the libraries are vendored.
	Vendor []string `json:"vendor" yaml:"vendor"`
	// Retained holds the names of libraries in the libs directory which
	// are referenced in relative form, i.e. libraries vendored by a
	// previous run.
	Retained []string `json:"retained,omitempty" yaml:"retained,omitempty"`
	// Visited is the number of distinct files which were inspected.
	Visited int `json:"visited" yaml:"visited"`
}

type walkState struct {
	mu       sync.Mutex
	visited  map[string]bool
	vendor   map[string]bool
	retained map[string]bool
}

// markVisited returns false if the canonical path was visited before.
func (s *walkState) markVisited(canonical string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visited[canonical] {
		return false
	}
	s.visited[canonical] = true
	return true
}

// Walk inspects every file below root and, transitively, every file
// those depend on, including files outside of root and outside of the
// vendor prefixes. Only Vendor-classified dependencies are collected.
func (w *Walker) Walk(ctx context.Context, root string) (*WalkResult, error) {
	seeds, err := listFiles(root)
	if err != nil {
		return nil, err
	}

	s := &walkState{
		visited:  map[string]bool{},
		vendor:   map[string]bool{},
		retained: map[string]bool{},
	}
	if w.Jobs > 1 {
		err = w.walkParallel(ctx, s, seeds)
	} else {
		err = w.walkSequential(ctx, s, seeds)
	}
	if err != nil {
		return nil, err
	}

	result := &WalkResult{
		Vendor:   sortedKeys(s.vendor),
		Retained: sortedKeys(s.retained),
		Visited:  len(s.visited),
	}
	log.Debugf("Inspected %d files, found %d vendored dependencies", result.Visited, len(result.Vendor))
	return result, nil
}

func (w *Walker) walkSequential(ctx context.Context, s *walkState, seeds []string) error {
	stack := make([]string, len(seeds))
	// Reversed, so that the seeds are popped in lexical order
	for i, seed := range seeds {
		stack[len(seeds)-1-i] = seed
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		path := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		deps, err := w.visit(s, path)
		if err != nil {
			return err
		}
		stack = append(stack, deps...)
	}
	return nil
}

func (w *Walker) walkParallel(ctx context.Context, s *walkState, seeds []string) error {
	group, groupCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(w.Jobs))

	var walk func(path string)
	walk = func(path string) {
		group.Go(func() error {
			err := sem.Acquire(groupCtx, 1)
			if err != nil {
				return errors.WithStack(err)
			}
			deps, err := w.visit(s, path)
			sem.Release(1)
			if err != nil {
				return err
			}
			for _, dep := range deps {
				walk(dep)
			}
			return nil
		})
	}

	for _, seed := range seeds {
		walk(seed)
	}
	return group.Wait()
}

// visit inspects path unless it was visited before and returns the
// dependencies which still have to be walked.
func (w *Walker) visit(s *walkState, path string) ([]string, error) {
	if !fileutil.IsRegularFile(path) {
		return nil, nil
	}
	canonical, err := fileutil.CanonicalPath(path)
	if err != nil {
		log.Debugf("Skipping %s: %v", path, err)
		return nil, nil
	}
	if !s.markVisited(canonical) {
		return nil, nil
	}

	refs, err := w.Inspector.References(path)
	if err != nil {
		return nil, err
	}
	deps := ldd.ExistingFiles(refs)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dep := range deps {
		if w.Classifier.Classify(dep) == Vendor {
			s.vendor[dep] = true
		}
	}
	for _, ref := range refs {
		name, ok := w.Layout.vendoredName(ref)
		if ok && fileutil.IsRegularFile(filepath.Join(w.Layout.LibsDir(), name)) {
			s.retained[name] = true
		}
	}
	return deps, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := maps.Keys(m)
	sort.Strings(keys)
	return keys
}
