package linux

import "plasma/dissector"

// Dissectors returns the Linux dissectors in catalog order.
func Dissectors() []*dissector.Dissector {
	return []*dissector.Dissector{
		NewResolv(),
		NewSystemdService(),
		NewOSRelease(),
		NewCrontab(),
	}
}
