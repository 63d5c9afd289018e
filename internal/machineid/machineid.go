// Package machineid derives a stable 16-hex-digit identifier for this
// machine from the strongest hardware source available and caches it on
// disk, so dashboard uploads from the same host always carry the same ID.
package machineid

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

const idLength = 16

// cacheRelPath lives under $HOME (or %LOCALAPPDATA% on Windows).
const cacheRelPath = ".ccusage/machine_id"

type source struct {
	label string
	value func() string
}

// Get returns the cached machine ID, deriving and persisting it on first
// use. Cache write failures are ignored; the ID is still returned.
func Get() string {
	if id := readCache(); id != "" {
		return id
	}
	id := Derive()
	writeCache(id)
	return id
}

// Derive computes the machine ID without touching the cache: the first
// non-empty source wins, and SHA-256 of "<unique>:<label>" is truncated to
// 16 lowercase hex digits.
func Derive() string {
	sources := []source{
		{"hardware_uuid", hardwareUUID},
		{"machine_id", linuxMachineID},
		{"mac_address", primaryMAC},
		{"hostname_user", hostnameUser},
	}
	for _, s := range sources {
		v := strings.TrimSpace(s.value())
		if v == "" {
			continue
		}
		sum := sha256.Sum256([]byte(v + ":" + s.label))
		return hex.EncodeToString(sum[:])[:idLength]
	}
	// hostnameUser never returns empty, but keep a terminal value anyway.
	sum := sha256.Sum256([]byte("unknown:hostname_user"))
	return hex.EncodeToString(sum[:])[:idLength]
}

func cachePath() string {
	base := os.Getenv("HOME")
	if base == "" {
		base = os.Getenv("LOCALAPPDATA")
	}
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = home
		}
	}
	if base == "" {
		return ""
	}
	return filepath.Join(base, filepath.FromSlash(cacheRelPath))
}

func readCache() string {
	path := cachePath()
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	id := strings.TrimSpace(string(data))
	if len(id) != idLength {
		return ""
	}
	return id
}

func writeCache(id string) {
	path := cachePath()
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(path, []byte(id+"\n"), 0o644)
}

// hardwareUUID extracts IOPlatformUUID from ioreg output on macOS.
func hardwareUUID() string {
	if runtime.GOOS != "darwin" {
		return ""
	}
	out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
	if err != nil {
		return ""
	}
	return extractQuotedAfter(string(out), `"IOPlatformUUID"`)
}

func linuxMachineID() string {
	if runtime.GOOS != "linux" {
		return ""
	}
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		if data, err := os.ReadFile(path); err == nil {
			if id := strings.TrimSpace(string(data)); id != "" {
				return id
			}
		}
	}
	return ""
}

func primaryMAC() string {
	switch runtime.GOOS {
	case "darwin":
		out, err := exec.Command("ifconfig", "en0").Output()
		if err != nil {
			return ""
		}
		return strings.ToLower(tokenAfter(string(out), "ether "))
	case "linux":
		out, err := exec.Command("ip", "link", "show").Output()
		if err != nil {
			return ""
		}
		return strings.ToLower(tokenAfter(string(out), "link/ether "))
	}
	return ""
}

func hostnameUser() string {
	host := os.Getenv("HOSTNAME")
	if host == "" {
		host = os.Getenv("COMPUTERNAME")
	}
	if host == "" {
		if h, err := os.Hostname(); err == nil {
			host = h
		}
	}
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	if user == "" {
		user = "unknown"
	}
	return host + ":" + user
}

// extractQuotedAfter finds marker and returns the next double-quoted token.
func extractQuotedAfter(text, marker string) string {
	i := strings.Index(text, marker)
	if i < 0 {
		return ""
	}
	rest := text[i+len(marker):]
	start := strings.IndexByte(rest, '"')
	if start < 0 {
		return ""
	}
	rest = rest[start+1:]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// tokenAfter returns the whitespace-delimited token following marker.
func tokenAfter(text, marker string) string {
	i := strings.Index(text, marker)
	if i < 0 {
		return ""
	}
	fields := strings.Fields(text[i+len(marker):])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
