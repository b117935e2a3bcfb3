package slugs_test

import (
	"testing"

	"github.com/dalemusser/learnhub/internal/app/system/slugs"
)

func TestIsReserved_BaseSet(t *testing.T) {
	for _, s := range []string{"dashboard", "courses", "events", "login", "Dashboard", " login "} {
		if !slugs.IsReserved(s) {
			t.Errorf("expected %q to be reserved", s)
		}
	}
	if slugs.IsReserved("uon") {
		t.Error("expected uon not to be reserved")
	}
}

func TestConfigure_ExtendsAndKeepsBase(t *testing.T) {
	t.Cleanup(func() { slugs.Configure(nil) })

	slugs.Configure(slugs.ParseList("blog, careers ,,"))
	if !slugs.IsReserved("blog") || !slugs.IsReserved("careers") {
		t.Error("expected configured segments to be reserved")
	}
	if !slugs.IsReserved("dashboard") {
		t.Error("expected base segment to stay reserved")
	}

	slugs.Configure(nil)
	if slugs.IsReserved("blog") {
		t.Error("expected blog to be dropped after reconfigure")
	}
}

func TestOrganization(t *testing.T) {
	cases := map[string]string{
		"uon":     "uon",
		" ACME ":  "acme",
		"courses": "",
		"":        "",
		"acme-":   "acme-",
		"_acme":   "_acme",
		"org_1-x": "org_1-x",
	}
	for in, want := range cases {
		if got := slugs.Organization(in); got != want {
			t.Errorf("Organization(%q): got %q, want %q", in, got, want)
		}
	}
}
