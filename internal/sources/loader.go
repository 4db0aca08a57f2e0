package sources

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Defaults applied to sources that leave the field empty.
const (
	defaultMaxPages   = 1
	defaultPageParam  = "page"
	defaultDateLayout = "2006-01-02"
)

// file is the on-disk layout of a sources file.
type file struct {
	DetailSelectors DetailSelectors `mapstructure:"detail_selectors"`
	Sources         []Source        `mapstructure:"sources"`
}

// LoadFile reads, decodes and validates a sources YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes and validates a sources document. Unknown keys are rejected
// so typos surface at load time rather than as silently empty selectors.
func Parse(data []byte) (*Registry, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse sources yaml: %w", err)
	}

	var f file
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &f,
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if decodeErr := decoder.Decode(raw); decodeErr != nil {
		return nil, fmt.Errorf("decode sources: %w", decodeErr)
	}

	if len(f.Sources) == 0 {
		return nil, ErrNoSources
	}

	srcs := make([]Source, 0, len(f.Sources))
	for i := range f.Sources {
		src := f.Sources[i]
		applyDefaults(&src, f.DetailSelectors)
		if validateErr := Validate(&src); validateErr != nil {
			return nil, validateErr
		}
		srcs = append(srcs, src)
	}

	return NewRegistry(srcs...)
}

func applyDefaults(src *Source, detail DetailSelectors) {
	if src.MaxPages <= 0 {
		src.MaxPages = defaultMaxPages
	}
	if src.PageParam == "" {
		src.PageParam = defaultPageParam
	}
	if len(src.DateLayouts) == 0 {
		src.DateLayouts = []string{defaultDateLayout}
	}
	if src.Name == "" {
		src.Name = src.ID
	}
	src.Detail.mergeDefaults(detail)
}
