package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/sinc/internal/engine"
	"github.com/roach88/sinc/internal/ir"
)

// marshalRow converts a tuple to canonical JSON TEXT for storage.
func marshalRow(row []int) (string, error) {
	data, err := ir.MarshalCanonical(ir.IntArray(row))
	if err != nil {
		return "", fmt.Errorf("marshal row: %w", err)
	}
	return string(data), nil
}

// marshalGrounding converts one grounding, a row per predicate, to
// canonical JSON TEXT.
func marshalGrounding(g [][]int) (string, error) {
	arr := make(ir.IRArray, len(g))
	for i, row := range g {
		arr[i] = ir.IntArray(row)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal grounding: %w", err)
	}
	return string(data), nil
}

// marshalStrings converts a name list to canonical JSON TEXT.
func marshalStrings(names []string) (string, error) {
	arr := make(ir.IRArray, len(names))
	for i, n := range names {
		arr[i] = ir.IRString(n)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal names: %w", err)
	}
	return string(data), nil
}

// marshalConfig stores the mining configuration as plain JSON. It holds
// floats, so it is never hashed.
func marshalConfig(cfg engine.Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

func unmarshalRow(data string) ([]int, error) {
	var row []int
	if err := json.Unmarshal([]byte(data), &row); err != nil {
		return nil, fmt.Errorf("unmarshal row: %w", err)
	}
	return row, nil
}

func unmarshalGrounding(data string) ([][]int, error) {
	var g [][]int
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return nil, fmt.Errorf("unmarshal grounding: %w", err)
	}
	return g, nil
}

func unmarshalStrings(data string) ([]string, error) {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal names: %w", err)
	}
	return names, nil
}

func unmarshalConfig(data string) (engine.Config, error) {
	var cfg engine.Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return engine.Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
