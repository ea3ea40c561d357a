package version

import "testing"

// withBuildInfo подменяет значения, которые в сборке задаются через -ldflags.
func withBuildInfo(t *testing.T, v, c, d string) {
	t.Helper()
	prevVersion, prevCommit, prevDate := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() {
		version, commit, date = prevVersion, prevCommit, prevDate
	})
}

func TestDefaults(t *testing.T) {
	v, c, d := Info()
	if v != "dev" || c != "unknown" || d != "unknown" {
		t.Fatalf("unexpected defaults: version=%q commit=%q date=%q", v, c, d)
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name          string
		v, c, d, want string
	}{
		{
			name: "local build",
			v:    "dev", c: "unknown", d: "unknown",
			want: "salesrepo version=dev commit=unknown date=unknown",
		},
		{
			name: "release build",
			v:    "v1.4.0", c: "3f2a9c1", d: "2024-06-01T09:00:00Z",
			want: "salesrepo version=v1.4.0 commit=3f2a9c1 date=2024-06-01T09:00:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withBuildInfo(t, tt.v, tt.c, tt.d)
			if got := String(); got != tt.want {
				t.Fatalf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAccessorsMatchInfo(t *testing.T) {
	withBuildInfo(t, "v2.0.0", "abc123", "2024-07-01")

	v, c, d := Info()
	if GetVersion() != v || GetCommit() != c || GetDate() != d {
		t.Fatalf("accessors (%s, %s, %s) do not match Info (%s, %s, %s)",
			GetVersion(), GetCommit(), GetDate(), v, c, d)
	}
	if v != "v2.0.0" {
		t.Fatalf("expected overridden version, got %q", v)
	}
}
