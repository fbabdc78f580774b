// Package buildinfo carries version metadata injected at link time.
package buildinfo

import (
	"fmt"
	"runtime"
)

// UnknownValue is reported for metadata that was not injected.
const UnknownValue = "unknown"

// Info is the build metadata of the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// New returns build metadata, substituting UnknownValue for empty fields.
func New(version, commit, buildDate string) *Info {
	return &Info{
		Version:   orUnknown(version),
		Commit:    orUnknown(commit),
		BuildDate: orUnknown(buildDate),
	}
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}

// GetVersion returns the version, or UnknownValue for a nil Info.
func (i *Info) GetVersion() string {
	if i == nil {
		return UnknownValue
	}
	return orUnknown(i.Version)
}

// GetBuildDate returns the build date, or UnknownValue for a nil Info.
func (i *Info) GetBuildDate() string {
	if i == nil {
		return UnknownValue
	}
	return orUnknown(i.BuildDate)
}

// String formats the metadata for the version command.
func (i *Info) String() string {
	commit := UnknownValue
	if i != nil {
		commit = orUnknown(i.Commit)
	}
	return fmt.Sprintf("%s (commit %s, built %s, %s)", i.GetVersion(), commit, i.GetBuildDate(), runtime.Version())
}
