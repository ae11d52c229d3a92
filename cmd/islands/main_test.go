package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHydrateCommand(t *testing.T) {
	page := filepath.Join(t.TempDir(), "page.html")
	src := `<div data-wp-interactive="app"><p data-wp-text="state.msg">server</p></div>` +
		`<script type="application/json" data-wp-interactive-state="app">{"msg":"client"}</script>`
	if err := os.WriteFile(page, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := hydrateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{page})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !strings.Contains(out.String(), ">client</p>") {
		t.Errorf("output = %s", out.String())
	}
}

func TestHydrateCommandStrict(t *testing.T) {
	cmd := hydrateCmd()
	cmd.SetIn(strings.NewReader(`<div data-wp-interactive="app"></div>` +
		`<script type="application/json" data-wp-interactive-state="app">{oops</script>`))
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--strict", "-"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("Execute() succeeded with a malformed state blob")
	}
	if !strings.Contains(errOut.String(), "E101") {
		t.Errorf("stderr = %q, want E101", errOut.String())
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := versionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--short"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != version {
		t.Errorf("version = %q, want %q", got, version)
	}
}
