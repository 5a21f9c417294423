// Package witness records the sequence of expansions a generalization run
// applied, together with a representative concrete sample at each step, so
// that the resulting abstract block can be explained rather than merely
// reported.
package witness

import (
	"encoding/json"

	"github.com/cdl-saarland/AnICA/pkg/block"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
)

// Entry is one accepted expansion step: the coordinate it touched and a
// sample block drawn from the resulting (coarser) abstract block.
type Entry struct {
	Coordinate string `json:"coordinate"`
	SampleAsm  string `json:"sample_asm"`
}

// Trace is the ordered list of expansions applied during one generalization
// run, taken (glossary: "Witness trace").
type Trace struct {
	Entries []Entry `json:"trace"`
}

// Append records one accepted expansion.
func (t *Trace) Append(e block.Expansion, ab *block.AbstractBlock, sample *iwho.BasicBlock) {
	t.Entries = append(t.Entries, Entry{
		Coordinate: e.Coordinate(ab),
		SampleAsm:  sample.Asm(),
	})
}

// File is the persisted witnesses/witness_<id>.json document (§6.4).
type File struct {
	DiscoveryID string  `json:"discovery_id"`
	SeedAsm     string  `json:"seed_asm"`
	Trace       []Entry `json:"trace"`
}

// Marshal renders a File as canonical JSON.
func (f *File) Marshal() ([]byte, error) {
	return json.MarshalIndent(f, "", "  ")
}
