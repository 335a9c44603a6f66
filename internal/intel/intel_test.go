package intel_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/raysh454/reconai/internal/config"
	"github.com/raysh454/reconai/internal/intel"
	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/module"
	"github.com/raysh454/reconai/internal/testutil"
)

func TestRegisterDefaults(t *testing.T) {
	t.Parallel()
	reg := module.NewRegistry()
	deps := intel.Deps{
		Config:    config.Default().Modules,
		WebClient: &testutil.DummyWebClient{},
		Logger:    logging.NewStdoutLogger("test"),
	}
	if err := intel.RegisterDefaults(reg, deps); err != nil {
		t.Fatalf("RegisterDefaults: %v", err)
	}

	for _, name := range []string{"domain", "web", "network", "social", "threat"} {
		if !reg.Supports(name, model.TargetDomain) || reg.Supports(name, model.TargetPerson) {
			t.Errorf("%s should support domain targets only", name)
		}
	}
	if !reg.Supports("person", model.TargetPerson) || reg.Supports("person", model.TargetDomain) {
		t.Error("person should support person targets only")
	}

	got, err := reg.Select(model.TargetDomain, model.ScanFull, nil)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if want := []string{"domain", "web", "network", "social", "threat"}; !reflect.DeepEqual(got, want) {
		t.Errorf("default domain modules = %v, want %v", got, want)
	}

	if err := intel.RegisterDefaults(reg, deps); !errors.Is(err, module.ErrDuplicateModule) {
		t.Errorf("second registration: expected ErrDuplicateModule, got %v", err)
	}
}

func TestRegisterDefaults_RequiresWebClient(t *testing.T) {
	t.Parallel()
	err := intel.RegisterDefaults(module.NewRegistry(), intel.Deps{Logger: logging.NewStdoutLogger("test")})
	if err == nil {
		t.Fatal("expected an error without a web client")
	}
}
