package discovery

import (
	"context"
	"testing"

	"github.com/cdl-saarland/AnICA/pkg/config"
	"github.com/cdl-saarland/AnICA/pkg/errs"
	"github.com/cdl-saarland/AnICA/pkg/feature"
	"github.com/cdl-saarland/AnICA/pkg/generalizer"
	"github.com/cdl-saarland/AnICA/pkg/iwho"
	"github.com/cdl-saarland/AnICA/pkg/util"
)

// An empty scheme universe makes make_top(n) itself unsatisfiable at every
// length: Run must end the campaign with a DiscoveryError rather than
// spinning on an empty termination criterion forever.
func TestRunEndsWithDiscoveryErrorWhenTopBlockIsUnsatisfiable(t *testing.T) {
	ctx, err := iwho.NewInMemoryContext(nil, nil)
	if err != nil {
		t.Fatalf("NewInMemoryContext: %v", err)
	}
	mgr, err := feature.NewManager(ctx, feature.DefaultDeclarations(), feature.DefaultExtractors())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	c := NewCampaign(&config.Config{}, mgr, ctx, nil, generalizer.Strategy{})

	err = c.Run(context.Background(), util.NewRng(1))
	if err == nil {
		t.Fatalf("Run() over an empty scheme universe did not error")
	}
	if !errs.Is(err, errs.KindDiscovery) {
		t.Errorf("Run() error kind = %v, want discovery", err)
	}
}
