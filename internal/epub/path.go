package epub

import "strings"

// ResolveHref resolves a manifest href, declared relative to baseDir, into
// an archive-absolute path with no "." or ".." segments.
//
// An href with a leading "/" is treated as archive-absolute and returned
// with the slash stripped. Otherwise baseDir is tokenized into a segment
// stack and each href segment is applied in order: "." is a no-op, ".."
// pops the top of the stack when non-empty and is silently ignored at an
// empty stack, anything else pushes. Resolution therefore never escapes
// the archive root and never fails.
//
// Pure function: no I/O, deterministic.
func ResolveHref(baseDir, href string) string {
	if strings.HasPrefix(href, "/") {
		return strings.TrimPrefix(href, "/")
	}

	stack := make([]string, 0, 8)
	for _, seg := range strings.Split(baseDir, "/") {
		if seg != "" && seg != "." {
			stack = append(stack, seg)
		}
	}

	for _, seg := range strings.Split(href, "/") {
		switch seg {
		case "", ".":
			// no-op
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, seg)
		}
	}

	return strings.Join(stack, "/")
}

// parentDir returns the directory portion of an archive path, empty when
// the path has no directory component.
func parentDir(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return ""
}

// splitFragment splits a source reference into its path and fragment parts.
func splitFragment(src string) (path, fragment string) {
	if i := strings.Index(src, "#"); i >= 0 {
		return src[:i], src[i+1:]
	}
	return src, ""
}
