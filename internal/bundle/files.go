package bundle

import (
	"path/filepath"
	"sort"

	"github.com/mattn/go-zglob"
	"github.com/pkg/errors"

	"github.com/MasterScott/LLDBagility/util/fileutil"
)

// listFiles returns every regular file below root in lexical order.
// Symlinks are not followed, so each framework binary is listed once
// even though frameworks link Versions/Current to the real version.
func listFiles(root string) ([]string, error) {
	matches, err := zglob.Glob(filepath.Join(root, "**", "*"))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var files []string
	for _, match := range matches {
		if fileutil.IsRegularNonSymlink(match) {
			files = append(files, match)
		}
	}
	sort.Strings(files)
	return files, nil
}
