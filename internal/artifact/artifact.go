// Package artifact defines the fixed set of Windows evidence categories the
// tool organizes and drives parsers for, and the classification rules that
// assign a category to a file name.
package artifact

import (
	"path/filepath"
	"strings"
)

// Type is one of the six artifact categories.
type Type string

const (
	Evtx     Type = "evtx"
	MFT      Type = "mft"
	Amcache  Type = "amcache"
	Lnk      Type = "lnk"
	Registry Type = "registry"
	Other    Type = "other"
)

// All returns every artifact type in root-directory order.
func All() []Type {
	return []Type{Evtx, MFT, Amcache, Lnk, Registry, Other}
}

// Parsable returns the types that have a dedicated parser binary bound to
// them. Other is handled by the generic log2timeline path.
func Parsable() []Type {
	return []Type{Evtx, MFT, Amcache, Lnk, Registry}
}

func (t Type) String() string { return string(t) }

// DirName is the root directory segment for the type. Identical to the
// string form; kept as a separate method so the path contract is explicit.
func (t Type) DirName() string { return string(t) }

// bareHives are registry hives stored without an extension.
var bareHives = map[string]bool{
	"SYSTEM":   true,
	"SOFTWARE": true,
	"SAM":      true,
	"SECURITY": true,
	"DEFAULT":  true,
}

// hiveFiles are registry hives that carry their canonical extension.
var hiveFiles = map[string]bool{
	"ntuser.dat":   true,
	"usrclass.dat": true,
}

// Classify assigns exactly one artifact type to a file name. It never fails:
// anything that matches no rule is Other, which is later handed to the
// generic extractor.
func Classify(name string) Type {
	base := filepath.Base(name)
	lower := strings.ToLower(base)
	ext := strings.ToLower(filepath.Ext(base))

	switch ext {
	case ".evtx":
		return Evtx
	case ".lnk":
		return Lnk
	}

	// $MFT usually has no extension, so it must be checked before the
	// bare-name registry rules.
	if strings.HasPrefix(lower, "$mft") || ext == ".mft" {
		return MFT
	}
	if ext == "" && strings.Contains(lower, "mft") {
		return MFT
	}

	if strings.Contains(lower, "amcache") {
		switch ext {
		case ".hve", ".log", ".log1", ".log2", "":
			return Amcache
		}
	}

	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if bareHives[stem] {
		// SYSTEM.pf, SOFTWARE.csv and friends are not hives.
		switch ext {
		case "", ".hve":
			return Registry
		}
	}
	if hiveFiles[lower] {
		return Registry
	}
	// Hive transaction logs: SYSTEM.LOG1, ntuser.dat.LOG2, ...
	if ext == ".log1" || ext == ".log2" {
		if bareHives[stem] || hiveFiles[strings.ToLower(stem)] {
			return Registry
		}
	}

	return Other
}
