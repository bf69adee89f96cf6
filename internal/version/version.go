package version

// Set at build time with -ldflags "-X github.com/keshon/songbird/internal/version.Version=..."
var Version = "dev"

const AppName = "Songbird"
