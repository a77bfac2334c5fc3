package dependabot

import "strings"

// Usernames the automated update tool posts under. Titles are only
// parsed for issues authored by one of these.
var Usernames = []string{"dependabot[bot]", "dependabot-preview[bot]"}

// labelEcosystems maps PR label names onto package ecosystems.
var labelEcosystems = map[string]string{
	// Ruby
	"ruby":     "rubygems",
	"rubygems": "rubygems",
	"bundler":  "rubygems",

	// JavaScript/Node.js
	"javascript": "npm",
	"npm":        "npm",
	"yarn":       "npm",
	"pnpm":       "npm",

	// Python
	"python": "pip",
	"pip":    "pip",
	"pipenv": "pip",
	"poetry": "pip",
	"uv":     "pip",

	// Java/JVM
	"java":   "maven",
	"maven":  "maven",
	"gradle": "gradle",
	"kotlin": "maven",
	"scala":  "maven",

	// .NET
	".net":   "nuget",
	"nuget":  "nuget",
	"dotnet": "nuget",

	// Go
	"go":     "go",
	"gomod":  "go",
	"golang": "go",

	// PHP
	"php":       "packagist",
	"composer":  "packagist",
	"packagist": "packagist",

	// Rust
	"rust":  "cargo",
	"cargo": "cargo",

	// Docker
	"docker":     "docker",
	"dockerfile": "docker",

	// GitHub Actions
	"github_actions": "actions",
	"github-actions": "actions",
	"actions":        "actions",

	// Infrastructure
	"terraform":  "terraform",
	"helm":       "helm",
	"kubernetes": "kubernetes",

	// Other languages
	"elixir":    "hex",
	"hex":       "hex",
	"mix":       "hex",
	"dart":      "pub",
	"pub":       "pub",
	"elm":       "elm",
	"swift":     "swift",
	"cocoapods": "cocoapods",
	"carthage":  "carthage",

	"conda":       "conda",
	"conda-forge": "conda",
}

var supportedEcosystems = func() map[string]bool {
	set := make(map[string]bool, len(labelEcosystems))
	for _, eco := range labelEcosystems {
		set[eco] = true
	}
	return set
}()

// IsUsername reports whether user is one of the tool's exact usernames.
func IsUsername(user string) bool {
	for _, u := range Usernames {
		if user == u {
			return true
		}
	}
	return false
}

// IsLogin is the looser actor check used during event routing; archive
// actor logins drop the "[bot]" suffix in some formats.
func IsLogin(login string) bool {
	return strings.Contains(login, "dependabot")
}

// EcosystemForLabels returns the first label with a known ecosystem
// mapping, in label order.
func EcosystemForLabels(labels []string) string {
	for _, label := range labels {
		if eco, ok := labelEcosystems[strings.ToLower(label)]; ok {
			return eco
		}
	}
	return ""
}

// EcosystemForPath infers an ecosystem from the update path when labels
// gave nothing.
func EcosystemForPath(path string) string {
	switch {
	case path == "":
		return ""
	case strings.Contains(path, ".github/workflows"):
		return "actions"
	case strings.Contains(path, "Dockerfile"):
		return "docker"
	}
	return ""
}

// SupportedEcosystem reports whether eco may be used as a package key.
func SupportedEcosystem(eco string) bool {
	return supportedEcosystems[eco]
}
