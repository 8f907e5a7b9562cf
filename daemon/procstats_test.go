package daemon

import "testing"

func TestParseProcStatExtractsUtimeAndStime(t *testing.T) {
	// Field 2 (comm) can contain spaces/parens; the real field split
	// must resume after the last ')', not the first.
	line := "1234 (my weird (proc) name) S 1 1234 1234 0 -1 4194560 100 0 0 0 55 10 0 0 20 0 1 0 123 0 0"

	utime, stime, ok := parseProcStat(line)
	if !ok {
		t.Fatal("expected parseProcStat to succeed")
	}
	if utime != 55 {
		t.Errorf("utime = %d, want 55", utime)
	}
	if stime != 10 {
		t.Errorf("stime = %d, want 10", stime)
	}
}

func TestParseProcStatRejectsMalformedLine(t *testing.T) {
	if _, _, ok := parseProcStat("not a proc stat line"); ok {
		t.Error("expected parseProcStat to fail on a line with no ')'")
	}
}

func TestParseVmRSSExtractsKilobytes(t *testing.T) {
	status := "Name:\tmyproc\nVmPeak:\t   10240 kB\nVmRSS:\t    2048 kB\nThreads:\t4\n"
	if kb := parseVmRSS(status); kb != 2048 {
		t.Errorf("VmRSS = %v, want 2048", kb)
	}
}

func TestParseVmRSSReturnsZeroWhenAbsent(t *testing.T) {
	if kb := parseVmRSS("Name:\tmyproc\n"); kb != 0 {
		t.Errorf("VmRSS = %v, want 0 when field absent", kb)
	}
}
