package witness

import (
	"encoding/json"
	"testing"

	"github.com/cdl-saarland/AnICA/pkg/block"
	"github.com/cdl-saarland/AnICA/pkg/feature"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
)

func TestAppendRecordsCoordinateAndSample(t *testing.T) {
	ctx, err := iwho.NewInMemoryContext(iwho.DefaultX86Schemes(), nil)
	if err != nil {
		t.Fatalf("NewInMemoryContext: %v", err)
	}
	mgr, err := feature.NewManager(ctx, feature.DefaultDeclarations(), feature.DefaultExtractors())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	nopScheme, _ := ctx.SchemeByID("NOP")
	concrete := iwho.NewBasicBlock([]*iwho.InsnInstance{{Scheme: nopScheme}})
	ab, err := block.FromConcrete(mgr, ctx, concrete)
	if err != nil {
		t.Fatalf("FromConcrete: %v", err)
	}
	expansions := ab.Expansions()
	if len(expansions) == 0 {
		t.Fatalf("a singleton-lifted block has no expansions to relax")
	}
	e := expansions[0]

	sample := iwho.NewBasicBlock([]*iwho.InsnInstance{{Scheme: nopScheme}})

	var tr Trace
	tr.Append(e, ab, sample)

	if len(tr.Entries) != 1 {
		t.Fatalf("Trace has %d entries, want 1", len(tr.Entries))
	}
	if tr.Entries[0].Coordinate != e.Coordinate(ab) {
		t.Errorf("Entries[0].Coordinate = %q, want %q", tr.Entries[0].Coordinate, e.Coordinate(ab))
	}
	if tr.Entries[0].SampleAsm != sample.Asm() {
		t.Errorf("Entries[0].SampleAsm = %q, want %q", tr.Entries[0].SampleAsm, sample.Asm())
	}
}

func TestFileMarshalIsStableJSON(t *testing.T) {
	f := &File{
		DiscoveryID: "d00001",
		SeedAsm:     "add rax, rbx",
		Trace:       []Entry{{Coordinate: "insn[0].mnemonic", SampleAsm: "add rcx, rdx"}},
	}
	data, err := f.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got File
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.DiscoveryID != f.DiscoveryID || got.SeedAsm != f.SeedAsm {
		t.Errorf("round-tripped File = %+v, want %+v", got, f)
	}
	if len(got.Trace) != 1 || got.Trace[0] != f.Trace[0] {
		t.Errorf("round-tripped Trace = %v, want %v", got.Trace, f.Trace)
	}
}
