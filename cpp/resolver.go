package cpp

import (
	"fmt"
	"regexp"
)

var (
	marlinEnabled  = regexp.MustCompile(`ENABLED\s*\(([^)]*)\)`)
	marlinDisabled = regexp.MustCompile(`DISABLED\s*\(([^)]*)\)`)
)

// MarlinResolver resolves the ENABLED(X) and DISABLED(X) feature macros used
// by the Marlin firmware to X and !(X).
var MarlinResolver = MacroResolverFunc(func(condition string) string {
	condition = marlinDisabled.ReplaceAllString(condition, "!(${1})")
	return marlinEnabled.ReplaceAllString(condition, "${1}")
})

// Resolvers maps the names usable in dataset descriptions and on the
// command line to resolvers.
var Resolvers = map[string]MacroResolver{
	"marlin": MarlinResolver,
}

// ResolverByName looks name up in Resolvers. The empty name selects no
// resolver and returns nil.
func ResolverByName(name string) (MacroResolver, error) {
	if name == "" {
		return nil, nil
	}
	r, ok := Resolvers[name]
	if !ok {
		return nil, fmt.Errorf("unknown macro resolver %q", name)
	}
	return r, nil
}
