package dependabot

import (
	"regexp"
	"strings"
)

var (
	reUpdatesLine     = regexp.MustCompile("Updates `([^`]+)` from (\\S+) to (\\S+)")
	reRemovesBacktick = regexp.MustCompile("Removes `([^`]+)`")
	reRemovesBracket  = regexp.MustCompile(`Removes \[([^\]]+)\]`)
	reTableRow        = regexp.MustCompile("\\|\\s*(.+?)\\s*\\|\\s*`?([^|`]+)`?\\s*\\|\\s*`?([^|`]+)`?\\s*\\|")
	reMarkdownLink    = regexp.MustCompile(`\[([^\]]+)\]`)
	reSeparatorCell   = regexp.MustCompile(`^:?-+:?$`)
	reUpdatedBullet   = regexp.MustCompile(`- Updated (\S+) from (\S+) to (\S+)(?: in ([^\n]+))?`)
)

const (
	tableHeader     = "| Package | From | To |"
	performedHeader = "Performed the following updates:"
)

// bodyVersionsFor finds "Updates `name` from A to B" for one specific
// package name.
func bodyVersionsFor(body, name string) (oldVersion, newVersion string, ok bool) {
	if body == "" {
		return "", "", false
	}
	re, err := regexp.Compile("Updates `" + regexp.QuoteMeta(name) + "` from (\\S+) to (\\S+)")
	if err != nil {
		return "", "", false
	}
	m := re.FindStringSubmatch(body)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// bodyRemoves reports whether the body explicitly removes the named
// package.
func bodyRemoves(body, name string) bool {
	if body == "" {
		return false
	}
	quoted := regexp.QuoteMeta(name)
	for _, pattern := range []string{
		"Removes `" + quoted + "`",
		`Removes \[` + quoted + `\]`,
	} {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(body) {
			return true
		}
	}
	return false
}

// bodyRemovalNames collects every package the body removes, in order of
// first mention.
func bodyRemovalNames(body string) []string {
	if body == "" {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, re := range []*regexp.Regexp{reRemovesBacktick, reRemovesBracket} {
		for _, m := range re.FindAllStringSubmatch(body, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	return names
}

// parseGroupPackages recovers the per-package detail of a group update:
// a "| Package | From | To |" markdown table first, then individual
// "Updates `NAME` from A to B" lines, then a "Performed the following
// updates:" bullet list. No detail is fine; group records may be empty.
func parseGroupPackages(body string) []PackageUpdate {
	if body == "" {
		return nil
	}
	if packages := parseGroupTable(body); len(packages) > 0 {
		return packages
	}
	var packages []PackageUpdate
	for _, m := range reUpdatesLine.FindAllStringSubmatch(body, -1) {
		packages = append(packages, PackageUpdate{
			Name:       m[1],
			OldVersion: m[2],
			NewVersion: m[3],
		})
	}
	if len(packages) > 0 {
		return packages
	}
	if strings.Contains(body, performedHeader) {
		for _, m := range reUpdatedBullet.FindAllStringSubmatch(body, -1) {
			packages = append(packages, PackageUpdate{
				Name:       m[1],
				OldVersion: m[2],
				NewVersion: m[3],
				Path:       strings.TrimSpace(m[4]),
			})
		}
	}
	return packages
}

func parseGroupTable(body string) []PackageUpdate {
	start := strings.Index(body, tableHeader)
	if start < 0 {
		return nil
	}
	section := body[start+len(tableHeader):]
	if end := strings.Index(section, "\n\n"); end >= 0 {
		section = section[:end]
	}

	var packages []PackageUpdate
	for _, m := range reTableRow.FindAllStringSubmatch(section, -1) {
		nameCell := strings.TrimSpace(m[1])
		if reSeparatorCell.MatchString(nameCell) {
			continue
		}
		name := nameCell
		if link := reMarkdownLink.FindStringSubmatch(nameCell); link != nil {
			name = link[1]
		}
		packages = append(packages, PackageUpdate{
			Name:       name,
			OldVersion: strings.TrimSpace(m[2]),
			NewVersion: strings.TrimSpace(m[3]),
		})
	}
	return packages
}
