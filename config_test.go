package lantern_test

import (
	"strings"
	"testing"

	"github.com/soypat/lantern"
	"github.com/soypat/lantern/glbuild"
	"github.com/spf13/afero"
)

func TestLoadConfigMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg, err := lantern.LoadConfig(fs, "lantern.json")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != lantern.DefaultConfig() {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestLoadConfigPartial(t *testing.T) {
	fs := afero.NewMemMapFs()
	err := afero.WriteFile(fs, "lantern.json", []byte(`{"mode":"per-draw","compiler_flags":4}`), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := lantern.LoadConfig(fs, "lantern.json")
	if err != nil {
		t.Fatal(err)
	}
	want := lantern.DefaultConfig()
	want.Mode = lantern.ModePerDraw
	want.CompilerFlags = 4
	if cfg != want {
		t.Errorf("want %+v, got %+v", want, cfg)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	for _, tc := range []struct {
		name, data, errContains string
	}{
		{name: "corrupt", data: `{"mode":`, errContains: "parse"},
		{name: "mode", data: `{"mode":"sometimes"}`, errContains: "session mode"},
		{name: "program", data: `{"program":"fixed"}`, errContains: "program layout"},
		{name: "flags", data: `{"default_flags":256}`, errContains: "legal range"},
		{name: "lru", data: `{"pipeline_cache_size":0}`, errContains: "cache size"},
		{name: "compiler", data: `{"compiler_flags":4294967295}`, errContains: "compiler flags"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			afero.WriteFile(fs, "cfg.json", []byte(tc.data), 0o644)
			cfg, err := lantern.LoadConfig(fs, "cfg.json")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.errContains) {
				t.Errorf("error %q does not mention %q", err, tc.errContains)
			}
			if cfg != lantern.DefaultConfig() {
				t.Error("invalid config should fall back to defaults")
			}
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg := lantern.DefaultConfig()
	cfg.Program = lantern.ProgramEffect
	cfg.DefaultFlags = glbuild.FlagTexture | glbuild.FlagFog
	cfg.ShowDialogs = false
	err := lantern.SaveConfig(fs, "settings/lantern.json", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := afero.Exists(fs, "settings/lantern.json.tmp"); ok {
		t.Error("temporary file left behind")
	}
	got, err := lantern.LoadConfig(fs, "settings/lantern.json")
	if err != nil {
		t.Fatal(err)
	}
	if got != cfg {
		t.Errorf("want %+v, got %+v", cfg, got)
	}
}

func TestConfigValidateJoinsErrors(t *testing.T) {
	var cfg lantern.Config
	err := cfg.Validate()
	if err == nil {
		t.Fatal("zero config should be invalid")
	}
	msg := err.Error()
	for _, s := range []string{"shader path", "cache path", "program layout", "session mode"} {
		if !strings.Contains(msg, s) {
			t.Errorf("missing %q in %q", s, msg)
		}
	}
}
