// Package vocabulary supplies the canonical code-list version the
// validation pipeline compares packages against. The canonical source is an
// external registry; deployments pin it through a YAML file.
package vocabulary

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Ameerovich/TRRCMS-Backend-sub004/pkg/domain"
)

// Provider yields the current canonical code-list version.
type Provider interface {
	CurrentVersion(ctx context.Context) (domain.CodeListVersion, error)
}

// Static always returns a fixed version. Default wiring and test double.
type Static struct {
	Version domain.CodeListVersion
}

func (s Static) CurrentVersion(context.Context) (domain.CodeListVersion, error) {
	return s.Version, nil
}

// DefaultVersion is the compiled-in canonical version used when no code-list
// file is configured.
var DefaultVersion = domain.CodeListVersion{Major: 2, Minor: 0, Patch: 0}

type codeListFile struct {
	Version string `yaml:"version"`
	Lists   []struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"lists"`
}

// FromFile loads the pinned canonical version from a YAML file, e.g.:
//
//	version: "2.1.0"
//	lists:
//	  - name: land_use
//	    version: "2.1.0"
func FromFile(path string) (Provider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read code-list file: %w", err)
	}
	var file codeListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse code-list file: %w", err)
	}
	version, err := domain.ParseCodeListVersion(file.Version)
	if err != nil {
		return nil, err
	}
	return Static{Version: version}, nil
}
