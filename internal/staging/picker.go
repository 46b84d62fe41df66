package staging

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/firstbutton/docucal/internal/config"
	"github.com/firstbutton/docucal/internal/models"
	"github.com/firstbutton/docucal/internal/validation"
)

// Rejected is a path the picker skipped, with the reason.
type Rejected struct {
	Path string
	Err  error
}

// Pick expands patterns into document handles in argument order.
//
// A leading ~ is expanded to the home directory. Globs are expanded with filepath.Glob (sorted within one pattern); plain
// paths are taken as-is. Nothing is deduplicated: naming a file twice stages
// it twice. Files that are missing, are directories, or have an unsupported
// extension are returned in rejected instead of failing the whole pick.
// Only a malformed glob is an error.
func Pick(patterns []string) (files []models.LocalFile, rejected []Rejected, err error) {
	for _, pattern := range patterns {
		pattern = config.ExpandHome(pattern)
		paths := []string{pattern}

		if strings.ContainsAny(pattern, "*?[") {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
			}
			if len(matches) == 0 {
				rejected = append(rejected, Rejected{Path: pattern, Err: fmt.Errorf("no files match pattern")})
				continue
			}
			paths = matches
		}

		for _, p := range paths {
			f, err := pickOne(p)
			if err != nil {
				rejected = append(rejected, Rejected{Path: p, Err: err})
				continue
			}
			files = append(files, f)
		}
	}

	return files, rejected, nil
}

func pickOne(path string) (models.LocalFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return models.LocalFile{}, fmt.Errorf("failed to get absolute path: %w", err)
	}
	if err := validation.ValidateDocument(filepath.Base(abs)); err != nil {
		return models.LocalFile{}, err
	}
	return models.NewLocalFile(abs)
}
