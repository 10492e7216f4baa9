//go:build !windows

package crypto

// DefaultHostIDStrategies lists host identity sources in preference order.
func DefaultHostIDStrategies() []HostIDStrategy {
	return []HostIDStrategy{
		fileStrategy("machine_id", "/etc/machine-id"),
		fileStrategy("dbus_machine_id", "/var/lib/dbus/machine-id"),
		ioregStrategy(),
		nodeProcessorStrategy(),
	}
}
