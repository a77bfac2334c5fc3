package dependabot

import (
	"regexp"
	"strconv"
	"strings"
)

// PackageUpdate is one parsed package entry. Removal marks packages the
// PR body says were removed rather than bumped.
type PackageUpdate struct {
	Name       string `json:"name"`
	OldVersion string `json:"old_version,omitempty"`
	NewVersion string `json:"new_version,omitempty"`
	Path       string `json:"path,omitempty"`
	Removal    bool   `json:"removal,omitempty"`
}

// Metadata is the structured result of parsing one PR title/body.
type Metadata struct {
	Prefix      string          `json:"prefix"`
	Packages    []PackageUpdate `json:"packages"`
	Path        string          `json:"path,omitempty"`
	Ecosystem   string          `json:"ecosystem,omitempty"`
	GroupName   string          `json:"group_name,omitempty"`
	UpdateCount int             `json:"update_count,omitempty"`
}

// A rule is one pattern extractor. apply returns (nil, false) when the
// rule does not recognize the title/body.
type rule struct {
	name  string
	apply func(title, body string) (*Metadata, bool)
}

// rules is the full cascade in priority order. The order is load-bearing:
// several titles satisfy more than one pattern and the first match wins.
var rules = []rule{
	{"requirement-from-to", matchRequirementFromTo},
	{"requirement-to", matchRequirementTo},
	{"comma-multi", matchCommaMulti},
	{"single-version-pair", matchSingleVersionPair},
	{"and-multi", matchAndMulti},
	{"single-body-version", matchSingleBodyVersion},
	{"group", matchGroup},
	{"version-range", matchVersionRange},
	{"simple-bump", matchSimpleBump},
	{"body-removals", matchBodyRemovals},
}

// Parse runs the cascade against a PR title and body. A nil result means
// no pattern matched, which is expected for many inputs and is not an
// error.
func Parse(title, body string) *Metadata {
	title = strings.TrimSpace(title)
	if title == "" && body == "" {
		return nil
	}
	for _, r := range rules {
		if meta, ok := r.apply(title, body); ok {
			return meta
		}
	}
	return nil
}

// RuleNames exposes the cascade order, mostly for inspection and tests.
func RuleNames() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.name
	}
	return names
}

var (
	reRequirementFromTo = regexp.MustCompile(`^(?P<prefix>.*?)(?P<word>[Uu]pdate) (?P<name>\S+) requirement from (?P<old>.+?) to (?P<new>.+?)(?: in (?P<path>.+?))?$`)
	reRequirementTo     = regexp.MustCompile(`^(?P<prefix>.*?)[Uu]pdate (?P<name>\S+) requirement to (?P<new>\S+)$`)
	reCommaMulti        = regexp.MustCompile(`^(?P<prefix>.+?)(?:\s+|:\s+)(?:[Bb]ump\s+)?(?P<names>\S+(?:,\s+\S+)+) from (?P<old>\S+) to (?P<new>\S+)(?: in (?P<path>.+))?$`)
	reSingle            = regexp.MustCompile(`^(?P<prefix>.+?)(?:\s+|:\s+)(?:[Bb]ump\s+)?(?P<name>\S+) from (?P<old>\S+) to (?P<new>\S+)(?: in (?P<path>.+))?$`)
	reAndMulti          = regexp.MustCompile(`^(?P<prefix>.+?)(?:\s+|:\s+)(?:[Bb]ump\s+)?(?P<names>.+?)(?: in (?P<path>.+))?$`)
	reSingleNoVersion   = regexp.MustCompile(`(?i)^(?P<prefix>.+?)(?:\s+|:\s+)(?:bump\s+)?(?P<name>\S+)(?: in (?P<path>.+))?$`)
	reGroup             = regexp.MustCompile(`(?i)^(?P<prefix>.+?)(?:\s+|:\s+)(?:the\s+)?(?P<group>[\w-]+) group (?:across \d+ director(?:y|ies) )?(?:with (?P<count>\d+) updates?(?: in (?P<path>.+?))?|(?:in (?P<path2>\S+) )?with (?P<count2>\d+) updates?)$`)
	reVersionRange      = regexp.MustCompile(`(?i)^(?P<prefix>.+?)\s+(?P<name>\S+) to (?P<versions>[\d.,\s]+)$`)
	reSimpleBump        = regexp.MustCompile(`^(?P<prefix>.*?)(?P<word>[Bb]ump)\s+(?P<name>\S+)$`)
)

// groups turns a match into a name-to-value map.
func groups(re *regexp.Regexp, match []string) map[string]string {
	out := make(map[string]string, len(match))
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(match) {
			out[name] = match[i]
		}
	}
	return out
}

// Requirement-range update: "Update X requirement from A to B [in PATH]".
// Compound ranges keep their commas, so old/new capture greedily up to
// the " to " / " in " separators.
func matchRequirementFromTo(title, _ string) (*Metadata, bool) {
	if !strings.Contains(title, " requirement ") {
		return nil, false
	}
	m := reRequirementFromTo.FindStringSubmatch(title)
	if m == nil {
		return nil, false
	}
	g := groups(reRequirementFromTo, m)
	return &Metadata{
		Prefix: g["prefix"] + g["word"],
		Packages: []PackageUpdate{{
			Name:       g["name"],
			OldVersion: strings.TrimSpace(g["old"]),
			NewVersion: strings.TrimSpace(g["new"]),
		}},
		Path: g["path"],
	}, true
}

// Requirement update without an old value: "Update X requirement to B".
func matchRequirementTo(title, _ string) (*Metadata, bool) {
	if !strings.Contains(title, " requirement ") {
		return nil, false
	}
	m := reRequirementTo.FindStringSubmatch(title)
	if m == nil {
		return nil, false
	}
	g := groups(reRequirementTo, m)
	return &Metadata{
		Prefix: strings.TrimSpace(g["prefix"]),
		Packages: []PackageUpdate{{
			Name:       g["name"],
			NewVersion: g["new"],
		}},
	}, true
}

// Comma-separated multi-package update sharing one version pair:
// "Bump a, b from A to B".
func matchCommaMulti(title, _ string) (*Metadata, bool) {
	m := reCommaMulti.FindStringSubmatch(title)
	if m == nil {
		return nil, false
	}
	g := groups(reCommaMulti, m)
	names := strings.Split(g["names"], ",")
	packages := make([]PackageUpdate, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		packages = append(packages, PackageUpdate{
			Name:       name,
			OldVersion: g["old"],
			NewVersion: g["new"],
		})
	}
	if len(packages) < 2 {
		return nil, false
	}
	return &Metadata{
		Prefix:   g["prefix"],
		Packages: packages,
		Path:     g["path"],
	}, true
}

// Single-package version-pair update: "Bump X from A to B [in PATH]".
func matchSingleVersionPair(title, _ string) (*Metadata, bool) {
	m := reSingle.FindStringSubmatch(title)
	if m == nil {
		return nil, false
	}
	g := groups(reSingle, m)
	return &Metadata{
		Prefix: g["prefix"],
		Packages: []PackageUpdate{{
			Name:       g["name"],
			OldVersion: g["old"],
			NewVersion: g["new"],
		}},
		Path: g["path"],
	}, true
}

// "and"-joined multi-package update: "Bump a and b [in PATH]". Version
// pairs come from the body's "Updates `NAME` from A to B" lines; a name
// the body says "Removes" is flagged as a removal.
func matchAndMulti(title, body string) (*Metadata, bool) {
	m := reAndMulti.FindStringSubmatch(title)
	if m == nil {
		return nil, false
	}
	g := groups(reAndMulti, m)
	if !strings.Contains(g["names"], " and ") {
		return nil, false
	}
	names := strings.Split(g["names"], " and ")
	packages := make([]PackageUpdate, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(name), ","))
		if name == "" {
			continue
		}
		pkg := PackageUpdate{Name: name}
		if old, newV, ok := bodyVersionsFor(body, name); ok {
			pkg.OldVersion = old
			pkg.NewVersion = newV
		} else if bodyRemoves(body, name) {
			pkg.Removal = true
		}
		packages = append(packages, pkg)
	}
	if len(packages) == 0 {
		return nil, false
	}
	return &Metadata{
		Prefix:   g["prefix"],
		Packages: packages,
		Path:     g["path"],
	}, true
}

// Single package with no version in the title; the version pair must be
// recoverable from the body or the rule falls through.
func matchSingleBodyVersion(title, body string) (*Metadata, bool) {
	if body == "" {
		return nil, false
	}
	m := reSingleNoVersion.FindStringSubmatch(title)
	if m == nil {
		return nil, false
	}
	g := groups(reSingleNoVersion, m)
	old, newV, ok := bodyVersionsFor(body, g["name"])
	if !ok {
		return nil, false
	}
	return &Metadata{
		Prefix: g["prefix"],
		Packages: []PackageUpdate{{
			Name:       g["name"],
			OldVersion: old,
			NewVersion: newV,
		}},
		Path: g["path"],
	}, true
}

// Group update: "... the GROUP group [across N directories] with K
// updates [in PATH]". Per-package detail comes from the body when
// present; a group with no recoverable detail still yields a record.
func matchGroup(title, body string) (*Metadata, bool) {
	if !strings.Contains(title, " group") {
		return nil, false
	}
	m := reGroup.FindStringSubmatch(title)
	if m == nil {
		return nil, false
	}
	g := groups(reGroup, m)
	count := g["count"]
	if count == "" {
		count = g["count2"]
	}
	path := g["path"]
	if path == "" {
		path = g["path2"]
	}
	updateCount, _ := strconv.Atoi(count)
	return &Metadata{
		Prefix:      g["prefix"],
		GroupName:   g["group"],
		UpdateCount: updateCount,
		Packages:    parseGroupPackages(body),
		Path:        normalizeDirectoryPath(path),
	}, true
}

// Version-range update: "Bump X to V1, V2, ..."; only the last listed
// version is kept.
func matchVersionRange(title, _ string) (*Metadata, bool) {
	m := reVersionRange.FindStringSubmatch(title)
	if m == nil {
		return nil, false
	}
	g := groups(reVersionRange, m)
	versions := strings.Split(g["versions"], ",")
	last := strings.TrimSpace(versions[len(versions)-1])
	if last == "" {
		return nil, false
	}
	return &Metadata{
		Prefix: g["prefix"],
		Packages: []PackageUpdate{{
			Name:       g["name"],
			NewVersion: last,
		}},
	}, true
}

// Simple bump with no version anywhere in the title: "bump X",
// "all: bump X". Versions are recovered from the body when possible; a
// bare record is still returned without them.
func matchSimpleBump(title, body string) (*Metadata, bool) {
	m := reSimpleBump.FindStringSubmatch(title)
	if m == nil {
		return nil, false
	}
	g := groups(reSimpleBump, m)
	pkg := PackageUpdate{Name: g["name"]}
	if old, newV, ok := bodyVersionsFor(body, g["name"]); ok {
		pkg.OldVersion = old
		pkg.NewVersion = newV
	}
	return &Metadata{
		Prefix:   g["prefix"] + strings.ToLower(g["word"]),
		Packages: []PackageUpdate{pkg},
	}, true
}

// Fallback: the title carries nothing but the body explicitly removes
// packages.
func matchBodyRemovals(_, body string) (*Metadata, bool) {
	names := bodyRemovalNames(body)
	if len(names) == 0 {
		return nil, false
	}
	packages := make([]PackageUpdate, 0, len(names))
	for _, name := range names {
		packages = append(packages, PackageUpdate{Name: name, Removal: true})
	}
	return &Metadata{Packages: packages}, true
}

var reDirectoryPath = regexp.MustCompile(`^the (.+) directory$`)

// "in the /foo directory" captures as "the /foo directory"; keep just
// the path.
func normalizeDirectoryPath(path string) string {
	if m := reDirectoryPath.FindStringSubmatch(path); m != nil {
		return m[1]
	}
	return path
}

var reNameQualifier = regexp.MustCompile(`\[[^\]]*\]\z`)

// NormalizeName strips a bracketed qualifier suffix (pip extras and the
// like) and embedded whitespace before the name is used as a package
// key.
func NormalizeName(name string) string {
	name = reNameQualifier.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(name), "")
}
