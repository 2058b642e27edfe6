// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

// Build metadata, stamped by the release build with -ldflags -X.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// UserAgent identifies spool on upstream vendor requests.
func UserAgent() string {
	return "spool/" + Version
}
