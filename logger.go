package zenplay

import "log"

// Logger is the minimal logging contract this module needs.
type Logger interface {
	Printf(format string, v ...any)
}

var pkgLogger Logger = log.Default()

// SetLogger overrides the package-wide default logger new Players inherit
// when Options.Logger is left nil.
func SetLogger(logger Logger) {
	pkgLogger = logger
}
