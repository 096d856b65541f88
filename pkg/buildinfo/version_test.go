package buildinfo

import (
	"strings"
	"testing"
)

func TestResolvedPrefersLdflags(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	Version = "v1.2.3"
	if got := Resolved(); got != "v1.2.3" {
		t.Errorf("Resolved() = %s, want v1.2.3", got)
	}
	if !strings.Contains(String(), "version: v1.2.3") {
		t.Errorf("String() = %q", String())
	}
	if !strings.HasPrefix(Template(), "{{.Name}} version v1.2.3") {
		t.Errorf("Template() = %q", Template())
	}
}
