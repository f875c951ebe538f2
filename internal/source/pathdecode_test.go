package source

import "testing"

// fakeDirs builds a DirExistsFunc over a fixed set of directories.
func fakeDirs(dirs ...string) DirExistsFunc {
	set := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		set[d] = true
	}
	return func(path string) bool { return set[path] }
}

func TestDecodeProjectPath_SimplePath(t *testing.T) {
	exists := fakeDirs("/Users", "/Users/jay", "/Users/jay/app")
	got := DecodeProjectPath("-Users-jay-app", exists)
	if got != "/Users/jay/app" {
		t.Fatalf("decoded %q, want /Users/jay/app", got)
	}
}

func TestDecodeProjectPath_HyphenatedComponent(t *testing.T) {
	exists := fakeDirs("/Users", "/Users/jay", "/Users/jay/my-app")
	got := DecodeProjectPath("-Users-jay-my-app", exists)
	if got != "/Users/jay/my-app" {
		t.Fatalf("decoded %q, want /Users/jay/my-app", got)
	}
}

func TestDecodeProjectPath_PrefersSeparatorWhenBothExist(t *testing.T) {
	// Both /a/b/c and /a/b-c exist; the separator reading wins because
	// /a/b is a real directory at the boundary.
	exists := fakeDirs("/a", "/a/b", "/a/b/c", "/a/b-c")
	got := DecodeProjectPath("-a-b-c", exists)
	if got != "/a/b/c" {
		t.Fatalf("decoded %q, want /a/b/c", got)
	}
}

func TestDecodeProjectPath_BacktracksToLiteralHyphen(t *testing.T) {
	// /opt exists but /opt/my does not; only /opt/my-tool/src resolves.
	exists := fakeDirs("/opt", "/opt/my-tool", "/opt/my-tool/src")
	got := DecodeProjectPath("-opt-my-tool-src", exists)
	if got != "/opt/my-tool/src" {
		t.Fatalf("decoded %q, want /opt/my-tool/src", got)
	}
}

func TestDecodeProjectPath_NoMatchReturnsEmpty(t *testing.T) {
	exists := fakeDirs("/somewhere/else")
	got := DecodeProjectPath("-Users-jay-ghost", exists)
	if got != "" {
		t.Fatalf("decoded %q, want empty for unresolvable name", got)
	}
}

func TestDecodeProjectPath_RejectsNonEncodedName(t *testing.T) {
	if got := DecodeProjectPath("plain-name", fakeDirs()); got != "" {
		t.Fatalf("decoded %q, want empty for name without leading hyphen", got)
	}
}

func TestDecodeProjectPath_ManyHyphensTerminates(t *testing.T) {
	// A long all-ambiguous name must finish quickly (memoized walk).
	encoded := "-a"
	for i := 0; i < 30; i++ {
		encoded += "-x"
	}
	if got := DecodeProjectPath(encoded, fakeDirs()); got != "" {
		t.Fatalf("decoded %q, want empty", got)
	}
}
