package crypto

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// nodeProcessorStrategy combines the host name with the processor architecture.
// It is weaker than a machine GUID but available almost everywhere.
func nodeProcessorStrategy() HostIDStrategy {
	return HostIDStrategy{
		Name: "node_processor",
		Lookup: func() ([]byte, error) {
			host, err := os.Hostname()
			if err != nil {
				return nil, err
			}
			if host == "" {
				return nil, errors.New("empty hostname")
			}
			return []byte(host + runtime.GOARCH), nil
		},
	}
}

// fileStrategy reads an identifier from a file such as /etc/machine-id.
func fileStrategy(name, path string) HostIDStrategy {
	return HostIDStrategy{
		Name: name,
		Lookup: func() ([]byte, error) {
			b, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			id := bytes.TrimSpace(b)
			if len(id) == 0 {
				return nil, errors.New(path + " is empty")
			}
			return id, nil
		},
	}
}

// ioregStrategy reads the IOPlatformUUID on macOS.
func ioregStrategy() HostIDStrategy {
	return HostIDStrategy{
		Name: "ioreg_platform_uuid",
		Lookup: func() ([]byte, error) {
			if runtime.GOOS != "darwin" {
				return nil, errors.New("ioreg only available on darwin")
			}
			out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
			if err != nil {
				return nil, err
			}
			for _, line := range strings.Split(string(out), "\n") {
				if !strings.Contains(line, "IOPlatformUUID") {
					continue
				}
				parts := strings.Split(line, "\"")
				if len(parts) >= 4 && parts[3] != "" {
					return []byte(parts[3]), nil
				}
			}
			return nil, errors.New("no IOPlatformUUID found")
		},
	}
}
