// Package intel wires the built-in intelligence modules into a registry.
package intel

import (
	"fmt"

	"github.com/raysh454/reconai/internal/config"
	"github.com/raysh454/reconai/internal/intel/domain"
	"github.com/raysh454/reconai/internal/intel/network"
	"github.com/raysh454/reconai/internal/intel/person"
	"github.com/raysh454/reconai/internal/intel/social"
	"github.com/raysh454/reconai/internal/intel/threat"
	"github.com/raysh454/reconai/internal/intel/web"
	"github.com/raysh454/reconai/internal/logging"
	"github.com/raysh454/reconai/internal/model"
	"github.com/raysh454/reconai/internal/module"
	"github.com/raysh454/reconai/internal/webclient"
)

// Deps are the collaborators shared by the built-in modules.
type Deps struct {
	Config    config.ModulesConfig
	WebClient webclient.WebClient
	Logger    logging.Logger
}

// RegisterDefaults registers domain, web, network, social and threat for
// domain targets and person for person targets.
func RegisterDefaults(reg *module.Registry, deps Deps) error {
	if deps.WebClient == nil {
		return fmt.Errorf("intel: web client is required")
	}
	builtins := []struct {
		mod    module.Module
		target model.TargetType
	}{
		{domain.New(deps.Config.Domain, deps.Logger), model.TargetDomain},
		{web.New(deps.Config.Web, deps.WebClient, deps.Logger), model.TargetDomain},
		{network.New(deps.Config.Network, deps.Logger), model.TargetDomain},
		{social.New(deps.Config.Social, deps.WebClient, deps.Logger), model.TargetDomain},
		{threat.New(), model.TargetDomain},
		{person.New(), model.TargetPerson},
	}
	for _, b := range builtins {
		if err := reg.Register(b.mod, b.target); err != nil {
			return fmt.Errorf("intel: %w", err)
		}
	}
	return nil
}
