//go:build windows

package crypto

import (
	"golang.org/x/sys/windows/registry"
)

func machineGUIDStrategy() HostIDStrategy {
	return HostIDStrategy{
		Name: "windows_machine_guid",
		Lookup: func() ([]byte, error) {
			k, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Cryptography`, registry.QUERY_VALUE|registry.WOW64_64KEY)
			if err != nil {
				return nil, err
			}
			defer k.Close()
			guid, _, err := k.GetStringValue("MachineGuid")
			if err != nil {
				return nil, err
			}
			return []byte(guid), nil
		},
	}
}

// DefaultHostIDStrategies lists host identity sources in preference order.
func DefaultHostIDStrategies() []HostIDStrategy {
	return []HostIDStrategy{
		machineGUIDStrategy(),
		nodeProcessorStrategy(),
	}
}
