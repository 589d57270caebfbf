package app

import (
	"github.com/vk/wirecell/internal/registry"
	"github.com/vk/wirecell/modules/env_vars"
	"github.com/vk/wirecell/modules/print"
)

// coreModules is the definitive list of modules compiled into the binary.
var coreModules = []registry.Module{
	&env_vars.Module{},
	&print.Module{},
}
