// Package header parses the Emacs-style local-variables line and the
// version line that may open Bobcat source and input-method files.
package header

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	localVarsPat = regexp.MustCompile(`^\.\.[ \t]*-\*-[ \t]*(.+?)[ \t]*-\*-[ \t]*$`)
	keyPat       = regexp.MustCompile(`^[a-z0-9_-]+$`)
	versionPat   = regexp.MustCompile(`^\.\.[ \t]+Bobcat[ \t]+(.*?)[ \t]*$`)
	versionNum   = regexp.MustCompile(`^\d+(\.\d+)*$`)
)

// ParseLocalVariables interprets line as a local-variables line of the
// form “.. -*- key: value; key: value -*-”. The line is lowercased first;
// keys and values are therefore case-insensitive. The second return value
// reports whether the line is a local-variables line at all; an error is
// returned only for a line that is one but is malformed inside.
func ParseLocalVariables(line string) (map[string]string, bool, error) {
	line = strings.TrimRight(strings.ToLower(line), " \t\r\n")
	m := localVarsPat.FindStringSubmatch(line)
	if m == nil {
		return nil, false, nil
	}
	vars := make(map[string]string)
	for _, item := range strings.Split(m[1], ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, value, found := strings.Cut(item, ":")
		key = strings.TrimSpace(key)
		if !found || !keyPat.MatchString(key) {
			return nil, true, fmt.Errorf("invalid local variable %q", item)
		}
		vars[key] = strings.TrimSpace(value)
	}
	return vars, true, nil
}

// Info is the data carried by the first lines of a Bobcat document.
type Info struct {
	Coding      string // empty means UTF-8
	InputMethod string // comma-separated table names, defaults to "minimal"
	Version     string // defaults to "1.0"

	// HasVersionLine reports whether the version line was present. A
	// missing line is worth a warning to the author.
	HasVersionLine bool
}

// Detect reads the document header from the first two lines of text. The
// optional local-variables line must be line one; the optional version
// line (“.. Bobcat 1.0”) directly follows it, or is line one itself. A
// version line with a non-numeric version is a hard error.
func Detect(text string) (Info, error) {
	info := Info{InputMethod: "minimal", Version: "1.0"}
	lines := strings.SplitN(text, "\n", 3)
	rest := lines
	if len(rest) > 0 {
		vars, ok, err := ParseLocalVariables(rest[0])
		if err != nil {
			return info, err
		}
		if ok {
			if c, ok := vars["coding"]; ok {
				info.Coding = c
			}
			if im, ok := vars["input-method"]; ok && im != "" {
				info.InputMethod = im
			}
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		line := strings.TrimRight(rest[0], " \t\r")
		if m := versionPat.FindStringSubmatch(line); m != nil {
			if !versionNum.MatchString(m[1]) {
				return info, fmt.Errorf("malformed Bobcat version %q", m[1])
			}
			info.Version = m[1]
			info.HasVersionLine = true
		}
	}
	return info, nil
}
