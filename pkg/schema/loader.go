package schema

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// catalog/steps.yaml lists the step files in wizard order. Each step file lives
// in catalog/steps/ and may reference shared option lists from catalog/options/
// through options_ref.
//
//go:embed catalog
var embedded embed.FS

const indexFile = "steps.yaml"

type stepIndex struct {
	Steps []string `yaml:"steps"`
}

type optionList struct {
	Name    string   `yaml:"name"`
	Options []string `yaml:"options"`
}

var defaultRegistry struct {
	once sync.Once
	reg  *Registry
	err  error
}

// Default returns the registry built from the embedded catalog.
func Default() (*Registry, error) {
	defaultRegistry.once.Do(func() {
		sub, err := fs.Sub(embedded, "catalog")
		if err != nil {
			defaultRegistry.err = err
			return
		}
		defaultRegistry.reg, defaultRegistry.err = LoadFS(sub)
	})
	return defaultRegistry.reg, defaultRegistry.err
}

// LoadDir builds a registry from a catalog directory on disk.
func LoadDir(dir string) (*Registry, error) {
	return LoadFS(os.DirFS(dir))
}

// Load returns the registry from dir when set, the embedded catalog otherwise.
func Load(dir string) (*Registry, error) {
	if strings.TrimSpace(dir) == "" {
		return Default()
	}
	return LoadDir(dir)
}

// LoadFS builds a registry from a catalog rooted at fsys.
func LoadFS(fsys fs.FS) (*Registry, error) {
	data, err := fs.ReadFile(fsys, indexFile)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", indexFile, err)
	}
	var index stepIndex
	if err := decodeStrict(data, &index); err != nil {
		return nil, fmt.Errorf("schema: parse %s: %w", indexFile, err)
	}
	if len(index.Steps) == 0 {
		return nil, fmt.Errorf("schema: %s has no entries", indexFile)
	}

	options, err := loadOptionLists(fsys)
	if err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(index.Steps))
	for _, filename := range index.Steps {
		filename = strings.TrimSpace(filename)
		if filename == "" {
			continue
		}
		p := path.Join("steps", filename)
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("schema: read %s: %w", p, err)
		}
		step, err := ParseStep(raw)
		if err != nil {
			return nil, fmt.Errorf("schema: parse %s: %w", filename, err)
		}
		if err := resolveOptions(&step, options); err != nil {
			return nil, fmt.Errorf("schema: %s: %w", filename, err)
		}
		steps = append(steps, step)
	}
	return NewRegistry(steps)
}

// ParseStep decodes a single step document.
func ParseStep(data []byte) (Step, error) {
	var step Step
	if len(bytes.TrimSpace(data)) == 0 {
		return step, fmt.Errorf("empty step document")
	}
	if err := decodeStrict(data, &step); err != nil {
		return step, err
	}
	return step, nil
}

func loadOptionLists(fsys fs.FS) (map[string][]string, error) {
	lists := map[string][]string{}
	matches, err := fs.Glob(fsys, "options/*.yaml")
	if err != nil {
		return nil, err
	}
	for _, p := range matches {
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("schema: read %s: %w", p, err)
		}
		var list optionList
		if err := decodeStrict(raw, &list); err != nil {
			return nil, fmt.Errorf("schema: parse %s: %w", p, err)
		}
		name := list.Name
		if name == "" {
			name = strings.TrimSuffix(path.Base(p), ".yaml")
		}
		if _, dup := lists[name]; dup {
			return nil, fmt.Errorf("schema: option list %q defined twice", name)
		}
		lists[name] = list.Options
	}
	return lists, nil
}

func resolveOptions(step *Step, lists map[string][]string) error {
	for i := range step.Fields {
		f := &step.Fields[i]
		if f.OptionsRef == "" {
			continue
		}
		if len(f.Options) > 0 {
			return fmt.Errorf("field %q sets both options and options_ref", f.Key)
		}
		opts, ok := lists[f.OptionsRef]
		if !ok {
			return fmt.Errorf("field %q references unknown option list %q", f.Key, f.OptionsRef)
		}
		f.Options = append([]string(nil), opts...)
	}
	return nil
}

func decodeStrict(data []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// FindCatalogDir looks for an on-disk catalog override next to the working
// directory or the executable. It returns "" when none exists.
func FindCatalogDir() string {
	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, "catalog"))
	}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(exeDir, "catalog"),
			filepath.Join(exeDir, "..", "catalog"),
		)
	}
	for _, dir := range candidates {
		if _, err := os.Stat(filepath.Join(dir, indexFile)); err == nil {
			return dir
		}
	}
	return ""
}
