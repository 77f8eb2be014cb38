package daemon

import (
	"testing"

	"go.uber.org/fx"
)

// The dependency graph is validated without executing providers, so no
// profile directory, lock, or network is needed.
func TestModuleGraphResolves(t *testing.T) {
	if err := fx.ValidateApp(Module(Params{ProfileName: "test"})); err != nil {
		t.Fatalf("fx graph invalid: %v", err)
	}
}
