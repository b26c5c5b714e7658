package commands

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

//go:embed all:templates
var templateFS embed.FS

// Scaffold file roles, in the order init reports them.
const (
	roleConfig = "Configuration"
	roleMarkup = "Markup"
	roleAssets = "Assets"
)

var scaffoldRoles = []string{roleConfig, roleMarkup, roleAssets}

// scaffoldFile is one file of a project scaffold.
type scaffoldFile struct {
	// Src is the path inside the embedded templates.
	Src string
	// Path is the path relative to the project directory.
	Path string
	Role string
	// Kept is set by write when an existing file was left alone.
	Kept bool
}

// scaffold is a starter project: "minimal" declares one empty grid,
// "example" an orders page using every filter type.
type scaffold struct {
	Name  string
	Files []scaffoldFile
}

func loadScaffold(name string) (*scaffold, error) {
	root := path.Join("templates", name)
	if _, err := fs.Stat(templateFS, root); err != nil {
		return nil, fmt.Errorf("unknown project template %q", name)
	}

	s := &scaffold{Name: name}
	err := fs.WalkDir(templateFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel := targetName(strings.TrimPrefix(p, root+"/"))
		s.Files = append(s.Files, scaffoldFile{Src: p, Path: rel, Role: fileRole(rel)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// write copies the scaffold into dir. Existing files are kept unless
// force is set.
func (s *scaffold) write(dir string, force bool) error {
	for i := range s.Files {
		f := &s.Files[i]
		target := filepath.Join(dir, filepath.FromSlash(f.Path))
		if !force {
			if _, err := os.Stat(target); err == nil {
				f.Kept = true
				continue
			}
		}
		content, err := templateFS.ReadFile(f.Src)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
			return err
		}
		if err := os.WriteFile(target, content, 0600); err != nil {
			return fmt.Errorf("write %s: %w", f.Path, err)
		}
	}
	return nil
}

// byRole returns the scaffold's files with the given role.
func (s *scaffold) byRole(role string) []scaffoldFile {
	var out []scaffoldFile
	for _, f := range s.Files {
		if f.Role == role {
			out = append(out, f)
		}
	}
	return out
}

// targetName restores dotfiles, which go:embed cannot carry under their
// real names.
func targetName(p string) string {
	dir, base := path.Split(p)
	if base == "gitignore" {
		return dir + ".gitignore"
	}
	return p
}

func fileRole(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml", ".gitignore":
		return roleConfig
	case ".html", ".htm":
		return roleMarkup
	}
	return roleAssets
}
