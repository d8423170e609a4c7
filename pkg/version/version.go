package version

// Current defines the application version.
// It defaults to "dev" but is overwritten by the Makefile using -ldflags.
var Current = "dev"

const AppName = "cloudseed"

// MinimumCompatibility is the wire-compatibility tag attached to every
// resolved candidate. Peers older than this are never suggested for joining.
const MinimumCompatibility = "1.0.0"
