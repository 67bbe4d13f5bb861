// Package config holds the language worker's process-level knobs and how
// they are parsed from the command line. No example repo in the pack
// reaches for a config/flags library (koanf, viper) for a program this
// small — those back full CLIs with dozens of knobs, this has four — so
// the standard library's flag package is the justified choice here.
package config

import (
	"flag"
	"strings"
	"time"
)

// Options is populated once at startup and handed to main.go's wiring;
// nothing downstream re-reads the command line.
type Options struct {
	// DylibPath is the path to the compiler-service client library,
	// loaded through sourcekitd/registry + sourcekitd/pluginclient.
	DylibPath string

	// ExcludedSchemes becomes worker.Config.ExcludedSchemes.
	ExcludedSchemes []string

	// RequestTimeout becomes worker.Config.RequestTimeout.
	RequestTimeout time.Duration

	// LogPath is where the server's structured log is written; empty
	// disables file logging in favor of stderr.
	LogPath string
}

// Default is what running with no flags at all produces: the worker's
// default excluded schemes (git, hg) and a 30-second request timeout.
// worker.Config on its own applies no timeout when RequestTimeout is zero.
func Default() Options {
	return Options{
		ExcludedSchemes: []string{"git", "hg"},
		RequestTimeout:  30 * time.Second,
	}
}

// Parse populates Options from args (os.Args[1:] in production, anything
// else in a test), starting from Default().
func Parse(args []string) (Options, error) {
	opts := Default()
	var schemes string

	fs := flag.NewFlagSet("langworker", flag.ContinueOnError)
	fs.StringVar(&opts.DylibPath, "sourcekitd", opts.DylibPath, "path to the sourcekitd client library")
	fs.StringVar(&schemes, "excluded-schemes", strings.Join(opts.ExcludedSchemes, ","), "comma-separated URI schemes never sent to the compiler service")
	fs.DurationVar(&opts.RequestTimeout, "request-timeout", opts.RequestTimeout, "per-request timeout against the compiler service")
	fs.StringVar(&opts.LogPath, "log", opts.LogPath, "path to write the server's log file (stderr if empty)")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}

	opts.ExcludedSchemes = splitNonEmpty(schemes)
	return opts, nil
}

// splitNonEmpty parses a comma-separated scheme list. It always returns a
// non-nil slice (empty rather than nil for an empty flag value) so
// worker.Config — which treats a nil ExcludedSchemes as "use the built-in
// default" — can tell "explicitly no exclusions" apart from "unset".
func splitNonEmpty(s string) []string {
	out := make([]string, 0)
	if strings.TrimSpace(s) == "" {
		return out
	}
	parts := strings.Split(s, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
