package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/Arcoson/PackageEngine/internal/registry"
)

func newStubRegistry(t *testing.T, requires map[string][]string) *registry.Registry {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/pypi/", func(w http.ResponseWriter, r *http.Request) {
		var name string
		if _, err := fmt.Sscanf(r.URL.Path, "/pypi/%s", &name); err != nil {
			http.NotFound(w, r)
			return
		}
		name = name[:len(name)-len("/json")]

		deps, ok := requires[name]
		if !ok {
			http.NotFound(w, r)
			return
		}

		fmt.Fprintf(w, `{"info": {"name": %q, "version": "1.0.0", "requires_dist": [`, name)
		for i, dep := range deps {
			if i > 0 {
				fmt.Fprint(w, ", ")
			}
			fmt.Fprintf(w, "%q", dep)
		}
		fmt.Fprint(w, `]}, "releases": {"1.0.0": [{"digests": {"sha256": "abc"}}]}}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return registry.New(srv.URL, registry.NewClient())
}

func TestExpandSpecsIncludesDependencies(t *testing.T) {
	reg := newStubRegistry(t, map[string][]string{
		"requests": {"urllib3 (<3)", "certifi"},
	})

	specs := expandSpecs(context.Background(), reg, []string{"requests==2.32.3"})
	want := []string{"requests==2.32.3", "urllib3", "certifi"}
	if !reflect.DeepEqual(specs, want) {
		t.Errorf("expandSpecs() = %v, want %v", specs, want)
	}
}

func TestExpandSpecsDeduplicates(t *testing.T) {
	reg := newStubRegistry(t, map[string][]string{
		"flask":  {"click", "jinja2"},
		"jinja2": {"markupsafe", "click"},
	})

	specs := expandSpecs(context.Background(), reg, []string{"flask", "jinja2", "Flask"})
	want := []string{"flask", "jinja2", "click", "markupsafe"}
	if !reflect.DeepEqual(specs, want) {
		t.Errorf("expandSpecs() = %v, want %v", specs, want)
	}
}

func TestExpandSpecsRegistryFailureDegrades(t *testing.T) {
	reg := newStubRegistry(t, nil)

	specs := expandSpecs(context.Background(), reg, []string{"ghost-pkg"})
	want := []string{"ghost-pkg"}
	if !reflect.DeepEqual(specs, want) {
		t.Errorf("expandSpecs() = %v, want %v", specs, want)
	}
}

func TestFailedNames(t *testing.T) {
	failures := []string{
		"flask: exit status 1",
		"requests: network unreachable: no route to host",
	}

	got := failedNames(failures)
	want := []string{"flask", "requests"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("failedNames() = %v, want %v", got, want)
	}
}
