package block

import (
	"encoding/json"
	"sort"

	"github.com/cdl-saarland/AnICA/pkg/errs"
	"github.com/cdl-saarland/AnICA/pkg/feature"
)

type wireBlock struct {
	AbsInsns    []map[string]any `json:"abs_insns"`
	AbsAliasing wireAliasing     `json:"abs_aliasing"`
}

type wireAliasing struct {
	AliasingDict []json.RawMessage `json:"aliasing_dict"`
	IsBot        bool              `json:"is_bot"`
}

type wireOperandTag struct {
	Pos  int
	Kind string
	Name string
}

// MarshalJSON renders ab in the canonical §6.1 wire format: map keys sort
// alphabetically (the Go json package's native map ordering), and the
// aliasing_dict list is emitted in a fixed (position, name) order so the
// round trip is byte-identical.
func (ab *AbstractBlock) MarshalJSON() ([]byte, error) {
	insns := make([]map[string]any, ab.Len())
	for i, m := range ab.insns {
		mv, err := ab.mgr.MarshalFeatures(m)
		if err != nil {
			return nil, err
		}
		insns[i] = mv
	}

	keys := ab.aliasing.Keys()
	type entry struct {
		i, j int
		val  AliasValue
	}
	var entries []entry
	for k, v := range ab.aliasing.vals {
		entries = append(entries, entry{k.a, k.b, v})
	}
	sort.Slice(entries, func(a, b int) bool {
		ka, kb := keys[entries[a].i], keys[entries[b].i]
		if ka.Pos != kb.Pos {
			return ka.Pos < kb.Pos
		}
		if ka.Name != kb.Name {
			return ka.Name < kb.Name
		}
		ka2, kb2 := keys[entries[a].j], keys[entries[b].j]
		if ka2.Pos != kb2.Pos {
			return ka2.Pos < kb2.Pos
		}
		return ka2.Name < kb2.Name
	})

	dict := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		raw, err := marshalPair(keys[e.i], keys[e.j], e.val)
		if err != nil {
			return nil, err
		}
		dict = append(dict, raw)
	}

	w := wireBlock{
		AbsInsns:    insns,
		AbsAliasing: wireAliasing{AliasingDict: dict, IsBot: ab.aliasing.isBot},
	}
	return json.Marshal(w)
}

func marshalPair(a, b OperandKey, val AliasValue) (json.RawMessage, error) {
	aTag := []any{a.Pos, []any{a.Kind.String(), a.Name}}
	bTag := []any{b.Pos, []any{b.Kind.String(), b.Name}}
	var v any
	switch val {
	case AliasMust:
		v = true
	case AliasMustNot:
		v = false
	default:
		v = "$SV:TOP"
	}
	return json.Marshal([]any{[]any{aTag, bTag}, v})
}

// UnmarshalBlock reconstructs an AbstractBlock previously rendered by
// MarshalJSON, resolving feature values against mgr and matching the
// serialized operand keys against an operand-key universe supplied by the
// caller (typically rebuilt from the same concrete seed).
func UnmarshalBlock(mgr *feature.Manager, keys []OperandKey, data []byte) (*AbstractBlock, error) {
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, errs.WrapConfigError(err, "block: invalid abstract block JSON")
	}
	insns := make([]map[string]feature.AbstractFeature, len(w.AbsInsns))
	for i, raw := range w.AbsInsns {
		fv, err := mgr.UnmarshalFeatures(raw)
		if err != nil {
			return nil, errs.WrapConfigError(err, "block: position %d", i)
		}
		insns[i] = fv
	}

	indexOf := make(map[OperandKey]int, len(keys))
	for idx, k := range keys {
		indexOf[k] = idx
	}
	aliasing := NewTopAliasing(keys)
	for _, raw := range w.AbsAliasing.AliasingDict {
		var tuple []json.RawMessage
		if err := json.Unmarshal(raw, &tuple); err != nil || len(tuple) != 2 {
			return nil, errs.ConfigError("block: malformed aliasing_dict entry")
		}
		var pair []json.RawMessage
		if err := json.Unmarshal(tuple[0], &pair); err != nil || len(pair) != 2 {
			return nil, errs.ConfigError("block: malformed aliasing pair")
		}
		a, err := unmarshalTag(pair[0])
		if err != nil {
			return nil, err
		}
		b, err := unmarshalTag(pair[1])
		if err != nil {
			return nil, err
		}
		ai, aok := indexOf[OperandKey{Pos: a.Pos, Name: a.Name}.withKeys(keys)]
		bi, bok := indexOf[OperandKey{Pos: b.Pos, Name: b.Name}.withKeys(keys)]
		if !aok || !bok {
			return nil, errs.ConfigError("block: aliasing pair references unknown operand (%v,%v)", a, b)
		}
		var val any
		if err := json.Unmarshal(tuple[1], &val); err != nil {
			return nil, errs.ConfigError("block: malformed aliasing value")
		}
		switch vv := val.(type) {
		case bool:
			if vv {
				aliasing.Set(ai, bi, AliasMust)
			} else {
				aliasing.Set(ai, bi, AliasMustNot)
			}
		case string:
			if vv != "$SV:TOP" {
				return nil, errs.ConfigError("block: unexpected aliasing value %q", vv)
			}
		default:
			return nil, errs.ConfigError("block: unexpected aliasing value type %T", val)
		}
	}
	aliasing.isBot = w.AbsAliasing.IsBot

	return &AbstractBlock{mgr: mgr, insns: insns, aliasing: aliasing}, nil
}

func unmarshalTag(raw json.RawMessage) (wireOperandTag, error) {
	var tag []json.RawMessage
	if err := json.Unmarshal(raw, &tag); err != nil || len(tag) != 2 {
		return wireOperandTag{}, errs.ConfigError("block: malformed operand tag")
	}
	var pos int
	if err := json.Unmarshal(tag[0], &pos); err != nil {
		return wireOperandTag{}, errs.ConfigError("block: malformed operand position")
	}
	var kn []json.RawMessage
	if err := json.Unmarshal(tag[1], &kn); err != nil || len(kn) != 2 {
		return wireOperandTag{}, errs.ConfigError("block: malformed operand kind/name")
	}
	var kind, name string
	if err := json.Unmarshal(kn[0], &kind); err != nil {
		return wireOperandTag{}, err
	}
	if err := json.Unmarshal(kn[1], &name); err != nil {
		return wireOperandTag{}, err
	}
	return wireOperandTag{Pos: pos, Kind: kind, Name: name}, nil
}

// withKeys resolves a partial (Pos, Name) key against the full operand-key
// universe, filling in OpIndex/Kind so the map lookup in indexOf succeeds.
func (k OperandKey) withKeys(universe []OperandKey) OperandKey {
	for _, u := range universe {
		if u.Pos == k.Pos && u.Name == k.Name {
			return u
		}
	}
	return k
}
