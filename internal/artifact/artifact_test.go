package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		want Type
	}{
		{"Security.evtx", Evtx},
		{"SYSTEM.EVTX", Evtx},
		{"report.LNK", Lnk},
		{"$MFT", MFT},
		{"$MFTMirr", MFT},
		{"disk0.mft", MFT},
		{"c_drive_mft", MFT},
		{"Amcache.hve", Amcache},
		{"Amcache.hve.LOG1", Amcache},
		{"SYSTEM", Registry},
		{"SOFTWARE", Registry},
		{"SAM", Registry},
		{"NTUSER.DAT", Registry},
		{"UsrClass.dat", Registry},
		{"SYSTEM.LOG1", Registry},
		{"NTUSER.DAT.LOG2", Registry},
		{"SYSTEM.pf", Other},
		{"SOFTWARE.csv", Other},
		{"notes.txt", Other},
		{"prefetch.pf", Other},
		{"", Other},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.name))
		})
	}
}

// Every file maps to exactly one type: Classify is total and deterministic.
func TestClassifyTotal(t *testing.T) {
	names := []string{
		"a.evtx", "b.lnk", "$MFT", "Amcache.hve", "SYSTEM",
		"random.bin", "no_extension", "weird..name.", ".hidden",
	}
	known := map[Type]bool{}
	for _, typ := range All() {
		known[typ] = true
	}
	for _, n := range names {
		got := Classify(n)
		assert.True(t, known[got], "Classify(%q) returned unknown type %q", n, got)
		assert.Equal(t, got, Classify(n), "Classify(%q) not deterministic", n)
	}
}

func TestClassifyPathUsesBase(t *testing.T) {
	assert.Equal(t, Evtx, Classify("/mnt/evidence/C/Windows/System32/winevt/Logs/Security.evtx"))
	assert.Equal(t, Registry, Classify("evidence/config/SYSTEM"))
}
