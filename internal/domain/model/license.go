package model

// LicenseAllowList is the fixed set of permitted license keys. Matching is
// case-sensitive against the key GitHub reports.
type LicenseAllowList map[string]struct{}

// NewLicenseAllowList builds an allow-list from the given keys.
func NewLicenseAllowList(keys ...string) LicenseAllowList {
	l := make(LicenseAllowList, len(keys))
	for _, k := range keys {
		if k != "" {
			l[k] = struct{}{}
		}
	}
	return l
}

// DefaultLicenseKeys lists the permissive licenses accepted when no allow-list
// is configured.
var DefaultLicenseKeys = []string{
	"mit", "apache-2.0", "bsd-2-clause", "bsd-3-clause",
	"isc", "unlicense", "0bsd", "artistic-2.0",
	"zlib", "wtfpl", "cc0-1.0", "mpl-2.0",
}

// Allows reports whether key is on the list. An empty key is never allowed.
func (l LicenseAllowList) Allows(key string) bool {
	if key == "" {
		return false
	}
	_, ok := l[key]
	return ok
}
