// Package fsproject provides a filesystem-based workspace.ProjectOpener
// that enumerates source files under a directory into a single project,
// the default used when no build-system-specific opener is configured.
package fsproject

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/c360studio/hotreload/internal/solution"
)

var defaultSkipDirs = map[string]bool{
	".git": true, "bin": true, "obj": true, "node_modules": true,
}

// Opener walks a directory tree and produces a single-project Solution
// whose Documents are every file matching Extensions.
type Opener struct {
	// Extensions lists file extensions (including leading dot) treated as
	// primary Documents. Files with the AdditionalExtensions suffix are
	// tracked as AdditionalDocuments instead.
	Extensions           []string
	AdditionalExtensions []string
	ProjectName          string
}

// Open implements workspace.ProjectOpener.
func (o Opener) Open(ctx context.Context, projectPath string) (solution.Solution, error) {
	docExt := toSet(o.Extensions)
	additionalExt := toSet(o.AdditionalExtensions)

	project := solution.Project{
		ID:   uuid.NewString(),
		Name: o.projectName(projectPath),
	}

	err := filepath.Walk(projectPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if info.IsDir() {
			if defaultSkipDirs[filepath.Base(path)] {
				return filepath.SkipDir
			}
			return nil
		}

		ext := filepath.Ext(path)
		switch {
		case docExt[ext]:
			text, readErr := os.ReadFile(path)
			if readErr != nil {
				return readErr
			}
			project.Documents = append(project.Documents, solution.Document{
				ID:   uuid.NewString(),
				Path: filepath.ToSlash(path),
				Text: string(text),
			})
		case additionalExt[ext]:
			text, readErr := os.ReadFile(path)
			if readErr != nil {
				return readErr
			}
			project.AdditionalDocuments = append(project.AdditionalDocuments, solution.AdditionalDocument{
				ID:   uuid.NewString(),
				Path: filepath.ToSlash(path),
				Text: string(text),
			})
		}
		return nil
	})
	if err != nil {
		return solution.Solution{}, err
	}

	return solution.Solution{Projects: []solution.Project{project}}, nil
}

func (o Opener) projectName(projectPath string) string {
	if o.ProjectName != "" {
		return o.ProjectName
	}
	return filepath.Base(projectPath)
}

func toSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}
