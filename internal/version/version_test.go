package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfoUsesLdflags(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() { Version, Commit, Date = origVersion, origCommit, origDate })

	Version = "1.0.0"
	Commit = "abc123def456"
	Date = "2026-01-01T12:00:00Z"

	info := GetInfo()
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, "abc123def456", info.Commit)
	assert.Equal(t, "2026-01-01T12:00:00Z", info.Date)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestWithBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-02-03T04:05:06Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	got := Info{Version: "dev", Commit: "unknown", Date: "unknown"}.withBuildInfo(bi)
	assert.Equal(t, Info{Version: "v0.4.0", Commit: "0123456789abcdef", Date: "2026-02-03T04:05:06Z", Modified: true}, got)

	pinned := Info{Version: "1.2.3", Commit: "feedface", Date: "today"}.withBuildInfo(bi)
	assert.Equal(t, "1.2.3", pinned.Version, "ldflags win over build info")
	assert.Equal(t, "feedface", pinned.Commit)

	devel := Info{Version: "dev"}.withBuildInfo(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	assert.Equal(t, "dev", devel.Version)
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{
			name: "truncates commit",
			info: Info{Version: "1.0.0", Commit: "abc123def456", Date: "2026-01-01", GoVersion: "go1.24.6", Platform: "linux/amd64"},
			want: "pomgen 1.0.0 (abc123de) built 2026-01-01 with go1.24.6 for linux/amd64",
		},
		{
			name: "short commit",
			info: Info{Version: "1.0.0", Commit: "abc123", Date: "2026-01-01", GoVersion: "go1.24.6", Platform: "darwin/arm64"},
			want: "pomgen 1.0.0 (abc123) built 2026-01-01 with go1.24.6 for darwin/arm64",
		},
		{
			name: "dirty tree",
			info: Info{Version: "dev", Commit: "0123456789", Modified: true, Date: "unknown", GoVersion: "go1.24.6", Platform: "linux/arm64"},
			want: "pomgen dev (01234567+dirty) built unknown with go1.24.6 for linux/arm64",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.String())
		})
	}
}

func TestInfoShort(t *testing.T) {
	assert.Equal(t, "1.0.0-rc1", Info{Version: "1.0.0-rc1"}.Short())
}
