// Package buildinfo holds release metadata set with -ldflags -X at build
// time. Local builds leave the values empty.
package buildinfo

var (
	Version = ""
	Commit  = ""
	Date    = ""
)
