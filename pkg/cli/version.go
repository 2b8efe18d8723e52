package cli

// Version is the current release version. Overridden at build time via
// -ldflags "-X github.com/blurkit/blurkit/pkg/cli.Version=...".
var Version = "0.1.0"
