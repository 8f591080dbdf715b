package buildinfo

// Overridden at build time via -ldflags "-X borderfleet/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
}
