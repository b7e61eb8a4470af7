package cfg

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// FillFromFile applies a TOML config file to every flag not already set by
// the CLI or the environment. Keys are flag names; underscores may stand in
// for dashes and tables prefix their keys, so [preview] secret is
// -preview-secret. Unknown keys are an error.
func FillFromFile(fs *flag.FlagSet, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return fillFromTOML(fs, data)
}

func fillFromTOML(fs *flag.FlagSet, data []byte) error {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	values := map[string]string{}
	if err := flatten("", doc, values); err != nil {
		return err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// sorted so errors come out in a stable order
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if name == "config" {
			errs = append(errs, errors.New("config file may not set config"))
			continue
		}
		if fs.Lookup(name) == nil {
			errs = append(errs, fmt.Errorf("unknown config key %q", name))
			continue
		}
		if set[name] {
			continue
		}
		if err := fs.Set(name, values[name]); err != nil {
			errs = append(errs, fmt.Errorf("config key %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func flatten(prefix string, m map[string]any, out map[string]string) error {
	for k, v := range m {
		name := strings.ReplaceAll(strings.ToLower(k), "_", "-")
		if prefix != "" {
			name = prefix + "-" + name
		}
		switch tv := v.(type) {
		case map[string]any:
			if err := flatten(name, tv, out); err != nil {
				return err
			}
		case []any:
			parts := make([]string, 0, len(tv))
			for _, e := range tv {
				parts = append(parts, fmt.Sprint(e))
			}
			out[name] = strings.Join(parts, ",")
		default:
			out[name] = fmt.Sprint(tv)
		}
	}
	return nil
}
