package version

// Version is overridden at build time with -ldflags "-X plasma/core/internal/version.Version=...".
var Version = "dev"
