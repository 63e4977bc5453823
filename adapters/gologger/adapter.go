// Package gologger names and resolves the loggers handed to loop components.
package gologger

import (
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

const RootName = "loop"

// Resolve uses deterministic precedence provider > logger > nop. An empty
// name resolves the root loop logger.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(ComponentName(name), provider, logger)
}

// ComponentName prefixes component with the root name: "client" becomes
// "loop.client".
func ComponentName(component string) string {
	component = strings.Trim(strings.TrimSpace(component), ".")
	if component == "" || component == RootName {
		return RootName
	}
	if strings.HasPrefix(component, RootName+".") {
		return component
	}
	return RootName + "." + component
}

// Component returns the named logger for component, never nil.
func Component(provider glog.LoggerProvider, component string) glog.Logger {
	if provider == nil {
		return glog.Nop()
	}
	return glog.Ensure(provider.GetLogger(ComponentName(component)))
}
