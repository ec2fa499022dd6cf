package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// mergeRoleDir adds the roles found under dir. A role is named after its
// path relative to dir without the extension, so roles/equities/value.md
// becomes "equities/value". Roles from the settings file win.
func (c *Config) mergeRoleDir(dir string) error {
	roles, err := readRoleDir(dir)
	if err != nil {
		return err
	}
	for name, setup := range roles {
		if _, ok := c.Roles[name]; ok {
			continue
		}
		if c.Roles == nil {
			c.Roles = map[string][]string{}
		}
		c.Roles[name] = setup
	}
	return nil
}

func readRoleDir(dir string) (map[string][]string, error) {
	roles := map[string][]string{}
	err := fs.WalkDir(os.DirFS(dir), ".", func(rel string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := path.Ext(rel)
		if !isRoleExt(ext) {
			return nil
		}
		setup, err := readRole(filepath.Join(dir, filepath.FromSlash(rel)), ext)
		if err != nil {
			return fmt.Errorf("role file %q: %w", rel, err)
		}
		roles[strings.TrimSuffix(rel, ext)] = setup
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read roles directory %q: %w", dir, err)
	}
	return roles, nil
}

func isRoleExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".md", ".yml", ".yaml":
		return true
	}
	return false
}

// readRole points markdown roles at their file so they are read, and
// stripped of frontmatter, when used. YAML roles hold one message or a list.
func readRole(file, ext string) ([]string, error) {
	if strings.EqualFold(ext, ".md") {
		return []string{"file://" + file}, nil
	}
	bts, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(bts, &node); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	var setup []string
	if len(node.Content) == 1 && node.Content[0].Kind == yaml.ScalarNode {
		setup = []string{node.Content[0].Value}
	} else if err := node.Decode(&setup); err != nil {
		return nil, errors.New("must be a YAML string or string list")
	}
	return setup, nil
}
