package templates

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/parsererror"

	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// templateFile is one YAML document: either a single template or a
// `templates:` list.
type templateFile struct {
	Templates       []models.Template `yaml:"templates"`
	models.Template `yaml:",inline"`
}

// Parse decodes every YAML document in data. Unknown keys are rejected so that
// a typo in a template surfaces at load time.
func Parse(data []byte, source string) ([]models.Template, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var out []models.Template
	for {
		var doc templateFile
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &parsererror.ValidationError{FilePath: source, Reason: err.Error()}
		}
		switch {
		case len(doc.Templates) > 0 && doc.Name != "":
			return nil, &parsererror.ValidationError{FilePath: source, Reason: "document mixes a template and a templates list"}
		case len(doc.Templates) > 0:
			out = append(out, doc.Templates...)
		case doc.Name != "":
			out = append(out, doc.Template)
		}
	}
	if len(out) == 0 {
		return nil, &parsererror.ValidationError{FilePath: source, Reason: "no template found"}
	}

	for i := range out {
		probe := out[i]
		if err := probe.Compile(); err != nil {
			return nil, &parsererror.ValidationError{FilePath: source, Reason: err.Error()}
		}
	}
	return out, nil
}

// LoadFile reads the templates declared in one YAML file.
func LoadFile(path string) ([]models.Template, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- template paths come from configuration
	if err != nil {
		return nil, fmt.Errorf("error reading template file: %w", err)
	}
	return Parse(data, path)
}

// LoadDir reads every *.yaml and *.yml file of dir in name order.
func LoadDir(dir string) ([]models.Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading template directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []models.Template
	for _, name := range names {
		ts, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, ts...)
	}
	return out, nil
}

// Builtin returns the templates embedded in the binary.
func Builtin() ([]models.Template, error) {
	var out []models.Template
	err := fs.WalkDir(builtinFS, "builtin", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := builtinFS.ReadFile(path)
		if err != nil {
			return err
		}
		ts, err := Parse(data, "builtin:"+d.Name())
		if err != nil {
			return err
		}
		out = append(out, ts...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindTemplateDir resolves a configured directory against the standard
// locations: the path itself, ./config/<dir>, then
// ~/.config/statement-ledger/<dir>.
func FindTemplateDir(dir string) (string, error) {
	if filepath.IsAbs(dir) {
		if isDir(dir) {
			return dir, nil
		}
		return "", os.ErrNotExist
	}

	locations := []string{
		dir,
		filepath.Join("config", dir),
	}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "statement-ledger", dir))
	}
	for _, location := range locations {
		if isDir(location) {
			return location, nil
		}
	}
	return "", os.ErrNotExist
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Options selects the template sources for Load.
type Options struct {
	Dirs    []string
	Builtin bool
}

// Load builds the registry from the embedded templates and the configured
// directories. A directory template replaces a builtin of the same name;
// two directory templates sharing a name are an error. Missing directories
// are skipped with a warning.
func Load(opts Options, logger logging.Logger) (*Registry, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	var builtin []models.Template
	if opts.Builtin {
		var err error
		builtin, err = Builtin()
		if err != nil {
			return nil, fmt.Errorf("error loading builtin templates: %w", err)
		}
	}

	var custom []models.Template
	for _, dir := range opts.Dirs {
		resolved, err := FindTemplateDir(dir)
		if err != nil {
			logger.Warn("Template directory not found", logging.F(logging.FieldTemplateDir, dir))
			continue
		}
		ts, err := LoadDir(resolved)
		if err != nil {
			return nil, err
		}
		logger.Debug("Loaded template directory",
			logging.F(logging.FieldTemplateDir, resolved),
			logging.F(logging.FieldCount, len(ts)))
		custom = append(custom, ts...)
	}

	overridden := make(map[string]bool, len(custom))
	for _, t := range custom {
		overridden[t.Name] = true
	}
	all := make([]models.Template, 0, len(builtin)+len(custom))
	for _, t := range builtin {
		if overridden[t.Name] {
			logger.Info("Builtin template overridden", logging.F(logging.FieldTemplate, t.Name))
			continue
		}
		all = append(all, t)
	}
	all = append(all, custom...)

	return NewRegistry(all...)
}
