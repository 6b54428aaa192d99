package java

// Version represents a Java installation
type Version struct {
	Version string // Version string (e.g., "1.8.0_292", "11.0.12")
	Path    string // Java home
}

// Major returns the feature release number ("8" for "1.8.0_292", "11" for "11.0.12")
func (v Version) Major() string {
	s := v.Version
	if len(s) > 2 && s[:2] == "1." {
		s = s[2:]
	}
	for i, r := range s {
		if r < '0' || r > '9' {
			return s[:i]
		}
	}
	return s
}
