// Package update provides version checking and binary replacement for the launcher.
//
// This package handles:
//   - Fetching the remote version descriptor (first line "app.version=<value>")
//   - Deciding whether an update is needed (plain string inequality)
//   - Streaming the replacement executable into a staging directory
//   - Swapping the staged executable over the installed one atomically
//
// The package is isolated from presentation and from the settings file. It
// returns plain values and wrapped sentinel errors that the orchestrator maps
// onto its failure policy.
//
// Example usage:
//
//	checker := update.NewChecker(versionURL)
//	res, err := checker.Check(ctx, store.AppVersion())
//	if err != nil {
//	    // network failure: abandon the cycle
//	}
//	if res.NeedsUpdate {
//	    applier := update.NewApplier()
//	    err = applier.DownloadTo(ctx, binaryURL, staging.Path("app.exe"))
//	}
package update
