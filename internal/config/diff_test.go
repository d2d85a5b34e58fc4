package config_test

import (
	"testing"
	"time"

	"github.com/MrWong99/necromancer/internal/config"
)

func TestDiff(t *testing.T) {
	t.Parallel()
	off := false
	on := true

	base := func() *config.Config {
		return &config.Config{
			Server: config.ServerConfig{LogLevel: config.LogInfo, ListenAddr: ":8666"},
			Ritual: config.RitualConfig{Temperature: 0.4},
			Sanity: config.SanityConfig{Floor: 20},
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   config.ConfigDiff
	}{
		{
			name:   "identical",
			mutate: func(*config.Config) {},
			want:   config.ConfigDiff{},
		},
		{
			name:   "log level",
			mutate: func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			want:   config.ConfigDiff{LogLevelChanged: true, NewLogLevel: config.LogDebug},
		},
		{
			name:   "ritual",
			mutate: func(c *config.Config) { c.Ritual.TopK = 10 },
			want: config.ConfigDiff{
				RitualChanged: true,
				NewRitual:     config.RitualConfig{Temperature: 0.4, TopK: 10},
			},
		},
		{
			name:   "sanity interval",
			mutate: func(c *config.Config) { c.Sanity.DecayInterval = time.Second },
			want: config.ConfigDiff{
				SanityChanged: true,
				NewSanity:     config.SanityConfig{Floor: 20, DecayInterval: time.Second},
			},
		},
		{
			name:   "listen address is not hot-reloadable",
			mutate: func(c *config.Config) { c.Server.ListenAddr = ":9999" },
			want:   config.ConfigDiff{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			newCfg := base()
			tt.mutate(newCfg)
			got := config.Diff(base(), newCfg)
			if got.LogLevelChanged != tt.want.LogLevelChanged || got.NewLogLevel != tt.want.NewLogLevel {
				t.Errorf("log level diff = %+v, want %+v", got, tt.want)
			}
			if got.RitualChanged != tt.want.RitualChanged || got.NewRitual != tt.want.NewRitual {
				t.Errorf("ritual diff = %+v, want %+v", got, tt.want)
			}
			if got.SanityChanged != tt.want.SanityChanged || got.NewSanity.DecayInterval != tt.want.NewSanity.DecayInterval {
				t.Errorf("sanity diff = %+v, want %+v", got, tt.want)
			}
			if got.Changed() != (tt.want.LogLevelChanged || tt.want.RitualChanged || tt.want.SanityChanged) {
				t.Errorf("Changed() = %v", got.Changed())
			}
		})
	}

	t.Run("enabled flag", func(t *testing.T) {
		t.Parallel()
		a, b := base(), base()
		b.Sanity.Enabled = &on
		if d := config.Diff(a, b); d.SanityChanged {
			t.Error("nil and true enabled should compare equal")
		}
		b.Sanity.Enabled = &off
		if d := config.Diff(a, b); !d.SanityChanged {
			t.Error("disabling sanity should be reported")
		}
	})
}
