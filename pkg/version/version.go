package version

// Version is the current huddle release
const Version = "0.1.0"

// BuildVersion returns the version string for display
func BuildVersion() string {
	return "huddle version " + Version
}

// APIVersion returns just the version number for API responses
func APIVersion() string {
	return Version
}
