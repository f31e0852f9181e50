package manifest

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/chazu/bcverify/hierarchy"
)

// classFile is the layout of a class definition file:
//
//	[[class]]
//	name = "com/example/Base"
//	super = "java/lang/Object"
//	interfaces = ["java/lang/Runnable"]
//
//	[[class.field]]
//	name = "count"
//	descriptor = "I"
type classFile struct {
	Classes []*hierarchy.Class `toml:"class"`
}

// LoadClasses reads the classes declared in a TOML class definition file.
func LoadClasses(path string) ([]*hierarchy.Class, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	var cf classFile
	if err := toml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	for i, c := range cf.Classes {
		if c.Name == "" {
			return nil, fmt.Errorf("%s: class %d has no name", path, i)
		}
		if c.Super == "" && c.Name != hierarchy.ObjectClass {
			c.Super = hierarchy.ObjectClass
		}
	}
	return cf.Classes, nil
}

// LoadRegistry builds a registry holding the core classes plus every class
// declared in the manifest's class files.
func (m *Manifest) LoadRegistry() (*hierarchy.Registry, error) {
	reg := hierarchy.NewRegistry()
	for _, path := range m.ClassFilePaths() {
		classes, err := LoadClasses(path)
		if err != nil {
			return nil, err
		}
		reg.AddAll(classes...)
	}
	return reg, nil
}
