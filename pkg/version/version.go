package version

// Version is the current jobsearch release.
const Version = "0.4.0"

// BuildVersion returns the version string shown by `jobsearch version`.
func BuildVersion() string {
	return "jobsearch version " + Version
}

// APIVersion returns the bare version number for API responses.
func APIVersion() string {
	return Version
}

// UserAgent is sent with every outbound API request.
func UserAgent() string {
	return "jobsearch/" + Version
}
