package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestVersionPopulated(t *testing.T) {
	if Version == "" {
		t.Error("Version is empty after init")
	}
	if Commit == "" {
		t.Error("Commit is empty after init")
	}
	if !strings.Contains(Full(), Version) || !strings.Contains(Full(), Commit) {
		t.Errorf("Full() = %q, want version and commit", Full())
	}
}

func TestPlatform(t *testing.T) {
	p := Platform()
	if !strings.HasPrefix(p, runtime.Version()) || !strings.HasSuffix(p, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Platform() = %q", p)
	}
}
