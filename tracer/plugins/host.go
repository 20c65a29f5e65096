// Package plugins collects one-shot host metadata attached to every emitted
// trace as resource tags. Sampling decisions never read these values.
package plugins

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
)

// Tag keys produced by HostMetadata.
const (
	HostNameKey      = "host.name"
	HostIDKey        = "host.id"
	HostArchKey      = "host.arch"
	HostIPKey        = "host.ip"
	OSTypeKey        = "os.type"
	OSDescriptionKey = "os.description"
)

var (
	hostInfo   = host.Info
	outboundIP = GetOutBoundIp
)

// HostMetadata returns enrichment tags for the current machine. Lookups that
// fail leave their keys out.
func HostMetadata() map[string]string {
	tags := map[string]string{
		HostArchKey: runtime.GOARCH,
		OSTypeKey:   runtime.GOOS,
	}

	if info, err := hostInfo(); err == nil && info != nil {
		setIfNotEmpty(tags, HostNameKey, info.Hostname)
		setIfNotEmpty(tags, HostIDKey, info.HostID)
		setIfNotEmpty(tags, HostArchKey, info.KernelArch)
		setIfNotEmpty(tags, OSTypeKey, info.OS)
		if info.Platform != "" {
			tags[OSDescriptionKey] = info.Platform + " " + info.PlatformVersion
		}
	}

	setIfNotEmpty(tags, HostIPKey, outboundIP())
	return tags
}

func setIfNotEmpty(tags map[string]string, key, value string) {
	if value != "" {
		tags[key] = value
	}
}
