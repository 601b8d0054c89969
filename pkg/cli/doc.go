// Package cli holds the pieces maactl shares across commands: profile
// configuration, output formatting with optional jq filtering, document
// loading and terminal styles.
//
// Configuration lives in ~/.maafw/<app>/config.yaml and holds named
// profiles, one of which is current, similar to kubectl contexts.
//
//	cfg, err := cli.LoadConfig("maactl")
//	p, err := cfg.ResolveProfile(flagProfile)
//	cli.Output(result, cli.OutputOptions{Format: cli.FormatJSON, Query: ".nodes[].name"})
package cli
