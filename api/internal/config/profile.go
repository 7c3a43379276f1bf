package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"drawing-ocr/api/internal/normalize"
	"drawing-ocr/api/internal/reconcile"
	"drawing-ocr/api/internal/tiling"
)

// DefaultProfile is used when a request names no document type.
const DefaultProfile = "weld"

var ErrUnknownProfile = errors.New("config: unknown document profile")

// Profile: настройки обработки одного типа чертежей.
type Profile struct {
	Name      string           `yaml:"-"`
	Tiling    tiling.Policy    `yaml:"tiling"`
	Expand    int              `yaml:"expand"`
	Normalize normalize.Config `yaml:"normalize"`
}

// WeldProfile: 4500px vertical strips, 500px footer cut, weld table cleanup.
func WeldProfile() Profile {
	return Profile{
		Name:      DefaultProfile,
		Tiling:    tiling.Policy{MaxTileDim: 4500, Axes: tiling.AxisX, Margin: 500},
		Expand:    reconcile.DefaultExpand,
		Normalize: normalize.WeldConfig(),
	}
}

// UnmarshalYAML defaults expand only when the key is absent; "expand: 0"
// turns box expansion off.
func (p *Profile) UnmarshalYAML(n *yaml.Node) error {
	type plain Profile
	v := plain{Expand: reconcile.DefaultExpand}
	if err := n.Decode(&v); err != nil {
		return err
	}
	*p = Profile(v)
	return nil
}

// Reconciler builds a reconciler with the profile's expansion.
func (p Profile) Reconciler() *reconcile.Reconciler {
	r := reconcile.New()
	if p.Expand >= 0 {
		r.Expand = p.Expand
	}
	return r
}

type Profiles map[string]Profile

func (ps Profiles) Get(name string) (Profile, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultProfile
	}
	p, ok := ps[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w %q", ErrUnknownProfile, name)
	}
	return p, nil
}

func (ps Profiles) Names() []string {
	out := make([]string, 0, len(ps))
	for n := range ps {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type profilesFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// ParseProfiles reads YAML like
//
//	profiles:
//	  weld:
//	    tiling: {max_tile_dim: 4500, axes: x, margin: 500}
//	    normalize: {paired: [weld no], header_depth: 2}
//
// The built-in weld profile is always present unless the file overrides it.
func ParseProfiles(data []byte) (Profiles, error) {
	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("profiles: %w", err)
	}
	out := Profiles{DefaultProfile: WeldProfile()}
	for name, p := range f.Profiles {
		name = strings.ToLower(strings.TrimSpace(name))
		p.Name = name
		if p.Tiling.MaxTileDim <= 0 {
			return nil, fmt.Errorf("profiles: %s: max_tile_dim must be positive", name)
		}
		if p.Expand < 0 {
			return nil, fmt.Errorf("profiles: %s: expand must not be negative", name)
		}
		if _, err := p.Normalize.Build(); err != nil {
			return nil, fmt.Errorf("profiles: %s: %w", name, err)
		}
		out[name] = p
	}
	return out, nil
}

// LoadProfiles reads the profiles file; an empty path gives the built-ins.
func LoadProfiles(path string) (Profiles, error) {
	if strings.TrimSpace(path) == "" {
		return Profiles{DefaultProfile: WeldProfile()}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profiles: %w", err)
	}
	return ParseProfiles(data)
}
