package app

import (
	"github.com/doc-E-brown/statsbox/internal/registry"
	"github.com/doc-E-brown/statsbox/internal/shell"
	"github.com/doc-E-brown/statsbox/modules/clean"
	"github.com/doc-E-brown/statsbox/modules/gotest"
	"github.com/doc-E-brown/statsbox/modules/lint"
	"github.com/doc-E-brown/statsbox/modules/montecarlo"
	"github.com/doc-E-brown/statsbox/modules/notify"
	"github.com/doc-E-brown/statsbox/modules/publish"
)

// coreModules returns the built-in runner modules, sharing a single
// process runner between the ones that spawn tools.
func coreModules(sh shell.Runner) []registry.Module {
	return []registry.Module{
		gotest.New(sh),
		lint.New(sh),
		clean.New(),
		montecarlo.New(),
		notify.New(),
		publish.New(),
	}
}
