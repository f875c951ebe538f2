package source

import (
	"os"
	"strconv"
	"strings"
)

// DirExistsFunc checks whether a path is an existing directory. Injected so
// decoding is testable and so concurrent decodes never share mutable state.
type DirExistsFunc func(path string) bool

// OSDirExists is the default DirExistsFunc backed by os.Stat.
func OSDirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// DecodeProjectPath recovers the original filesystem path from an encoded
// project directory name, where every path separator was replaced with a
// hyphen. Real path components may themselves contain hyphens, so decoding
// backtracks: at each hyphen boundary a separator interpretation is
// preferred only while the path-so-far is a real directory, otherwise the
// hyphen stays literal. The memo table is scoped to this call and keyed by
// (segment index, path-so-far), keeping the walk polynomial.
//
// Returns "" when no interpretation resolves to an existing directory;
// a null path, never a plausible-looking wrong one.
func DecodeProjectPath(encoded string, dirExists DirExistsFunc) string {
	if dirExists == nil {
		dirExists = OSDirExists
	}
	if !strings.HasPrefix(encoded, "-") {
		return ""
	}
	segs := strings.Split(strings.TrimPrefix(encoded, "-"), "-")
	if len(segs) == 0 || segs[0] == "" {
		return ""
	}

	failed := make(map[string]bool)

	var walk func(i int, cur string) (string, bool)
	walk = func(i int, cur string) (string, bool) {
		if i == len(segs) {
			if dirExists(cur) {
				return cur, true
			}
			return "", false
		}
		key := strconv.Itoa(i) + "\x00" + cur
		if failed[key] {
			return "", false
		}

		asSep := cur + "/" + segs[i]
		asLiteral := cur + "-" + segs[i]
		first, second := asSep, asLiteral
		if !dirExists(cur) {
			first, second = asLiteral, asSep
		}

		if res, ok := walk(i+1, first); ok {
			return res, true
		}
		if res, ok := walk(i+1, second); ok {
			return res, true
		}
		failed[key] = true
		return "", false
	}

	res, ok := walk(1, "/"+segs[0])
	if !ok {
		return ""
	}
	return res
}
