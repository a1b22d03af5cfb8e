package quake

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed volcanoes.yaml
var volcanoDataset []byte

// ReferenceVolcanoes decodes the embedded volcano dataset.
func ReferenceVolcanoes() ([]Volcano, error) {
	var vs []Volcano
	if err := yaml.Unmarshal(volcanoDataset, &vs); err != nil {
		return nil, fmt.Errorf("decode volcano dataset: %w", err)
	}
	return vs, nil
}

// ReloadVolcanoes replaces the stored reference dataset with the embedded one
// and returns the number of entries loaded.
func ReloadVolcanoes(ctx context.Context, store VolcanoStore) (int, error) {
	vs, err := ReferenceVolcanoes()
	if err != nil {
		return 0, err
	}
	if err := store.ReplaceVolcanoes(ctx, vs); err != nil {
		return 0, fmt.Errorf("replace volcanoes: %w", err)
	}
	return len(vs), nil
}
