package source

import (
	"embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed mappings/*.yaml
var mappingFS embed.FS

// Mapping translates corpus labels into shared (kind, category) labels.
type Mapping struct {
	Corpus string
	// DefaultKind, when set, admits unlisted labels as their own category.
	DefaultKind Kind
	labels      map[string]Label
}

type mappingFile struct {
	Corpus      string           `yaml:"corpus"`
	DefaultKind string           `yaml:"default_kind"`
	Labels      map[string]Label `yaml:"labels"`
}

// LoadMapping reads the embedded mapping for corpus.
func LoadMapping(corpus string) (*Mapping, error) {
	data, err := mappingFS.ReadFile("mappings/" + corpus + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("label mapping for %s: %w", corpus, err)
	}
	return ParseMapping(data)
}

// ParseMapping decodes a YAML mapping document and canonicalises its keys.
func ParseMapping(data []byte) (*Mapping, error) {
	var file mappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse label mapping: %w", err)
	}
	m := &Mapping{Corpus: file.Corpus, labels: make(map[string]Label, len(file.Labels))}
	if file.DefaultKind != "" {
		kind, ok := ParseKind(file.DefaultKind)
		if !ok {
			return nil, fmt.Errorf("label mapping %s: unknown default kind %q", file.Corpus, file.DefaultKind)
		}
		m.DefaultKind = kind
	}
	for raw, label := range file.Labels {
		kind, ok := ParseKind(string(label.Kind))
		if !ok {
			return nil, fmt.Errorf("label mapping %s: %q has unknown kind %q", file.Corpus, raw, label.Kind)
		}
		if label.Category == "" {
			return nil, fmt.Errorf("label mapping %s: %q has no category", file.Corpus, raw)
		}
		m.labels[Canonical(raw)] = Label{Kind: kind, Category: Canonical(label.Category)}
	}
	return m, nil
}

// Lookup maps a raw corpus label.
func (m *Mapping) Lookup(raw string) (Label, bool) {
	key := Canonical(raw)
	if label, ok := m.labels[key]; ok {
		return label, true
	}
	if m.DefaultKind != "" && key != "" {
		return Label{Kind: m.DefaultKind, Category: key}, true
	}
	return Label{}, false
}

// Labels returns the distinct mapped labels sorted by kind then category.
func (m *Mapping) Labels() []Label {
	seen := make(map[Label]struct{}, len(m.labels))
	out := make([]Label, 0, len(m.labels))
	for _, label := range m.labels {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	sortLabels(out)
	return out
}

func sortLabels(labels []Label) {
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Kind != labels[j].Kind {
			return labels[i].Kind < labels[j].Kind
		}
		return labels[i].Category < labels[j].Category
	})
}
