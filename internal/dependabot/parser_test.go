package dependabot

import "testing"

func TestParse_SingleVersionPair(t *testing.T) {
	meta := Parse("Bump rack from 2.2.16 to 2.2.17", "")
	if meta == nil {
		t.Fatalf("no match")
	}
	if meta.Prefix != "Bump" {
		t.Fatalf("prefix=%q want Bump", meta.Prefix)
	}
	if len(meta.Packages) != 1 {
		t.Fatalf("packages=%d want 1", len(meta.Packages))
	}
	pkg := meta.Packages[0]
	if pkg.Name != "rack" || pkg.OldVersion != "2.2.16" || pkg.NewVersion != "2.2.17" {
		t.Fatalf("pkg=%+v", pkg)
	}
}

func TestParse_SingleVersionPairWithPath(t *testing.T) {
	meta := Parse("chore(deps): bump lodash from 4.17.20 to 4.17.21 in /frontend", "")
	if meta == nil {
		t.Fatalf("no match")
	}
	if meta.Prefix != "chore(deps)" {
		t.Fatalf("prefix=%q", meta.Prefix)
	}
	if meta.Path != "/frontend" {
		t.Fatalf("path=%q want /frontend", meta.Path)
	}
	if meta.Packages[0].Name != "lodash" {
		t.Fatalf("name=%q", meta.Packages[0].Name)
	}
}

func TestParse_RequirementFromTo(t *testing.T) {
	meta := Parse("Update rubocop requirement from ~> 1.79.0 to ~> 1.80.1", "")
	if meta == nil {
		t.Fatalf("no match")
	}
	if meta.Prefix != "Update" {
		t.Fatalf("prefix=%q", meta.Prefix)
	}
	pkg := meta.Packages[0]
	if pkg.Name != "rubocop" || pkg.OldVersion != "~> 1.79.0" || pkg.NewVersion != "~> 1.80.1" {
		t.Fatalf("pkg=%+v", pkg)
	}
}

func TestParse_RequirementCompoundRange(t *testing.T) {
	meta := Parse("Update rake requirement from >= 10.0, < 13.0 to >= 10.0, < 14.0", "")
	if meta == nil {
		t.Fatalf("no match")
	}
	pkg := meta.Packages[0]
	if pkg.OldVersion != ">= 10.0, < 13.0" || pkg.NewVersion != ">= 10.0, < 14.0" {
		t.Fatalf("pkg=%+v", pkg)
	}
}

func TestParse_RequirementTo(t *testing.T) {
	meta := Parse("Update sqlite3 requirement to >=2.7.0", "")
	if meta == nil {
		t.Fatalf("no match")
	}
	pkg := meta.Packages[0]
	if pkg.Name != "sqlite3" || pkg.OldVersion != "" || pkg.NewVersion != ">=2.7.0" {
		t.Fatalf("pkg=%+v", pkg)
	}
}

func TestParse_CommaMulti(t *testing.T) {
	meta := Parse("Bump rack, rack-session from 2.0.0 to 2.1.0", "")
	if meta == nil {
		t.Fatalf("no match")
	}
	if len(meta.Packages) != 2 {
		t.Fatalf("packages=%d want 2", len(meta.Packages))
	}
	if meta.Packages[0].Name != "rack" || meta.Packages[1].Name != "rack-session" {
		t.Fatalf("names=%q %q", meta.Packages[0].Name, meta.Packages[1].Name)
	}
	for _, pkg := range meta.Packages {
		if pkg.OldVersion != "2.0.0" || pkg.NewVersion != "2.1.0" {
			t.Fatalf("pkg=%+v", pkg)
		}
	}
}

func TestParse_AndMultiWithBodyVersions(t *testing.T) {
	body := "Updates `eslint` from 8.57.0 to 9.0.0\n\nUpdates `prettier` from 2.8.0 to 3.2.5\n"
	meta := Parse("Bump eslint and prettier", body)
	if meta == nil {
		t.Fatalf("no match")
	}
	if len(meta.Packages) != 2 {
		t.Fatalf("packages=%d want 2", len(meta.Packages))
	}
	if meta.Packages[0].NewVersion != "9.0.0" {
		t.Fatalf("eslint new=%q", meta.Packages[0].NewVersion)
	}
	if meta.Packages[1].OldVersion != "2.8.0" {
		t.Fatalf("prettier old=%q", meta.Packages[1].OldVersion)
	}
}

func TestParse_AndMultiWithRemoval(t *testing.T) {
	body := "Updates `glob` from 7.0.0 to 10.0.0\n\nRemoves `inflight`\n"
	meta := Parse("Bump glob and inflight", body)
	if meta == nil {
		t.Fatalf("no match")
	}
	if len(meta.Packages) != 2 {
		t.Fatalf("packages=%d want 2", len(meta.Packages))
	}
	if meta.Packages[1].Name != "inflight" || !meta.Packages[1].Removal {
		t.Fatalf("pkg=%+v want removal", meta.Packages[1])
	}
}

func TestParse_SingleBodyVersion(t *testing.T) {
	body := "Updates `rack` from 2.2.16 to 2.2.17\n"
	meta := Parse("Update rack", body)
	if meta == nil {
		t.Fatalf("no match")
	}
	pkg := meta.Packages[0]
	if pkg.Name != "rack" || pkg.OldVersion != "2.2.16" || pkg.NewVersion != "2.2.17" {
		t.Fatalf("pkg=%+v", pkg)
	}
}

func TestParse_GroupWithTable(t *testing.T) {
	body := "Bumps the npm_and_yarn group with 5 updates:\n\n" +
		"| Package | From | To |\n" +
		"| --- | --- | --- |\n" +
		"| [glob](https://github.com/isaacs/node-glob) | `10.0.0` | `11.0.0` |\n" +
		"| [rimraf](https://github.com/isaacs/rimraf) | `5.0.0` | `6.0.0` |\n" +
		"| [eslint](https://github.com/eslint/eslint) | `8.0.0` | `9.0.0` |\n" +
		"| [mocha](https://github.com/mochajs/mocha) | `10.0.0` | `10.4.0` |\n" +
		"| [chai](https://github.com/chaijs/chai) | `4.0.0` | `5.1.0` |\n" +
		"\nMore detail below.\n"
	meta := Parse("Bump the npm_and_yarn group with 5 updates", body)
	if meta == nil {
		t.Fatalf("no match")
	}
	if meta.GroupName != "npm_and_yarn" {
		t.Fatalf("group=%q", meta.GroupName)
	}
	if meta.UpdateCount != 5 {
		t.Fatalf("count=%d want 5", meta.UpdateCount)
	}
	if len(meta.Packages) != 5 {
		t.Fatalf("packages=%d want 5", len(meta.Packages))
	}
	if meta.Packages[0].Name != "glob" || meta.Packages[0].NewVersion != "11.0.0" {
		t.Fatalf("pkg=%+v", meta.Packages[0])
	}
}

func TestParse_GroupAcrossDirectories(t *testing.T) {
	meta := Parse("Bump the dev-dependencies group across 2 directories with 3 updates", "")
	if meta == nil {
		t.Fatalf("no match")
	}
	if meta.GroupName != "dev-dependencies" || meta.UpdateCount != 3 {
		t.Fatalf("meta=%+v", meta)
	}
	if len(meta.Packages) != 0 {
		t.Fatalf("packages=%d want 0 without body detail", len(meta.Packages))
	}
}

func TestParse_GroupPathBeforeCount(t *testing.T) {
	meta := Parse("Bump the docker group in /api with 2 updates", "")
	if meta == nil {
		t.Fatalf("no match")
	}
	if meta.GroupName != "docker" || meta.UpdateCount != 2 || meta.Path != "/api" {
		t.Fatalf("meta=%+v", meta)
	}
}

func TestParse_GroupDirectoryPathNormalized(t *testing.T) {
	meta := Parse("Bump the pip group with 2 updates in the /backend directory", "")
	if meta == nil {
		t.Fatalf("no match")
	}
	if meta.Path != "/backend" {
		t.Fatalf("path=%q want /backend", meta.Path)
	}
}

func TestParse_GroupPerformedBullets(t *testing.T) {
	body := "Performed the following updates:\n" +
		"- Updated foo from 1.0.0 to 2.0.0 in /app\n" +
		"- Updated bar from 3.1.0 to 3.2.0 in /app\n"
	meta := Parse("Bump the go_modules group with 2 updates", body)
	if meta == nil {
		t.Fatalf("no match")
	}
	if len(meta.Packages) != 2 {
		t.Fatalf("packages=%d want 2", len(meta.Packages))
	}
	if meta.Packages[0].Path != "/app" {
		t.Fatalf("path=%q", meta.Packages[0].Path)
	}
}

func TestParse_VersionRange(t *testing.T) {
	meta := Parse("Bump golang.org/x/crypto to 0.17.0, 0.18.0", "")
	if meta == nil {
		t.Fatalf("no match")
	}
	pkg := meta.Packages[0]
	if pkg.Name != "golang.org/x/crypto" || pkg.NewVersion != "0.18.0" {
		t.Fatalf("pkg=%+v", pkg)
	}
}

func TestParse_SimpleBump(t *testing.T) {
	meta := Parse("all: Bump github.com/stretchr/testify", "")
	if meta == nil {
		t.Fatalf("no match")
	}
	if meta.Prefix != "all: bump" {
		t.Fatalf("prefix=%q", meta.Prefix)
	}
	if meta.Packages[0].Name != "github.com/stretchr/testify" {
		t.Fatalf("name=%q", meta.Packages[0].Name)
	}
}

func TestParse_SimpleBumpBodyVersions(t *testing.T) {
	body := "Updates `serde` from 1.0.190 to 1.0.200\n"
	meta := Parse("Bump serde", body)
	if meta == nil {
		t.Fatalf("no match")
	}
	pkg := meta.Packages[0]
	if pkg.OldVersion != "1.0.190" || pkg.NewVersion != "1.0.200" {
		t.Fatalf("pkg=%+v", pkg)
	}
}

func TestParse_BodyRemovalsFallback(t *testing.T) {
	body := "Removes `left-pad`\n\nRemoves [request]\n"
	meta := Parse("Update dependencies", body)
	if meta == nil {
		t.Fatalf("no match")
	}
	if len(meta.Packages) != 2 {
		t.Fatalf("packages=%d want 2", len(meta.Packages))
	}
	for _, pkg := range meta.Packages {
		if !pkg.Removal {
			t.Fatalf("pkg=%+v want removal", pkg)
		}
	}
	if meta.Packages[0].Name != "left-pad" || meta.Packages[1].Name != "request" {
		t.Fatalf("names=%q %q", meta.Packages[0].Name, meta.Packages[1].Name)
	}
}

func TestParse_NoMatch(t *testing.T) {
	if meta := Parse("Fix typo in README", ""); meta != nil {
		t.Fatalf("meta=%+v want nil", meta)
	}
	if meta := Parse("", ""); meta != nil {
		t.Fatalf("meta=%+v want nil for empty input", meta)
	}
}

func TestRuleNamesOrder(t *testing.T) {
	names := RuleNames()
	if len(names) != 10 {
		t.Fatalf("rules=%d want 10", len(names))
	}
	if names[0] != "requirement-from-to" || names[len(names)-1] != "body-removals" {
		t.Fatalf("order=%v", names)
	}
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"rack", "rack"},
		{"uvicorn[standard]", "uvicorn"},
		{"foo bar", "foobar"},
		{"requests [security]", "requests"},
	}
	for _, tc := range cases {
		if got := NormalizeName(tc.in); got != tc.want {
			t.Fatalf("NormalizeName(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}
