package request

// NormalizeMemory converts a raw memory value into the form the runtime
// expects. Docker-family runtimes get an "m" suffix appended to bare digit
// strings; podman-family runtimes get exactly one trailing "m"/"M" removed.
// Anything else passes through.
//
// NormalizeMemory(r, NormalizeMemory(r, m)) == NormalizeMemory(r, m) for all
// r and m, so a podman value is only stripped when what remains does not
// itself end in a unit letter ("64mm" is left alone).
func NormalizeMemory(runtime Runtime, raw string) string {
	switch {
	case runtime.DockerFamily():
		if isDigits(raw) {
			return raw + "m"
		}
	case runtime.PodmanFamily():
		if hasUnitSuffix(raw) && !hasUnitSuffix(raw[:len(raw)-1]) {
			return raw[:len(raw)-1]
		}
	}
	return raw
}

func hasUnitSuffix(s string) bool {
	n := len(s)
	return n > 0 && (s[n-1] == 'm' || s[n-1] == 'M')
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
