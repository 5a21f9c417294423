package feature

import "fmt"

// sentinelTop is the wire value for a ⊤ abstract feature whose lattice has no
// natural "already everything" encoding (singleton and editdistance; subset
// and subset_or_definitely_not serialize ⊤ as ordinary set values instead).
const sentinelTop = "$SV:TOP"

// FromJSON reconstructs an AbstractFeature of the given kind from a decoded
// JSON value, as produced by MarshalValue / the §6.1 wire format.
func FromJSON(kind Kind, universe *Universe, maxEditDistance int, raw any) (AbstractFeature, error) {
	switch kind {
	case KindSingleton:
		if raw == sentinelTop {
			return TopSingleton(), nil
		}
		sv, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("feature: singleton value must be a string, got %T", raw)
		}
		return NewSingleton(sv), nil
	case KindSubset:
		items, err := toStringSlice(raw)
		if err != nil {
			return nil, fmt.Errorf("feature: subset value: %w", err)
		}
		return NewSubset(universe, items...), nil
	case KindSubsetOrDefinitelyNot:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("feature: subset_or_definitely_not value must be an object, got %T", raw)
		}
		items, err := toStringSlice(m["subfeature"])
		if err != nil {
			return nil, fmt.Errorf("feature: subset_or_definitely_not.subfeature: %w", err)
		}
		isIn, _ := m["is_in_subfeature"].(bool)
		return NewSubsetOrDefinitelyNot(universe, isIn, items...), nil
	case KindEditDistance:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("feature: editdistance value must be an object, got %T", raw)
		}
		base, _ := m["base"].(string)
		maxDist := maxEditDistance
		if md, ok := m["max_dist"]; ok {
			if v, err := toInt(md); err == nil {
				maxDist = v
			}
		}
		if top, _ := m["top"].(bool); top || m["curr_dist"] == nil {
			return TopEditDistance(maxDist), nil
		}
		delta, err := toInt(m["curr_dist"])
		if err != nil {
			return nil, fmt.Errorf("feature: editdistance.curr_dist: %w", err)
		}
		return NewEditDistance(base, maxDist).withD(delta), nil
	default:
		return nil, fmt.Errorf("feature: unknown kind %q", kind)
	}
}

func toStringSlice(raw any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array, got %T", raw)
	}
	res := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string element, got %T", it)
		}
		res = append(res, s)
	}
	return res, nil
}

func toInt(raw any) (int, error) {
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", raw)
	}
}
