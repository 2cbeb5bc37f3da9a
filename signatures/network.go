package signatures

import (
	"shrike/detect"
)

// dynamicDNSPattern matches hostnames under the free dynamic-DNS
// providers commonly rented for command and control infrastructure.
const dynamicDNSPattern = `.+\.(no-ip\.(com|org|biz|info)|dyndns\.(org|biz|info)|ddns\.net|duckdns\.org|zapto\.org|hopto\.org|sytes\.net|myftp\.(biz|org)|bounceme\.net|redirectme\.net|servebeer\.com|3utilities\.com)`

// directIPURLPattern matches HTTP requests addressed to a bare IP
// instead of a hostname.
const directIPURLPattern = `https?://\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}(:\d+)?(/|$)`

var networkIndicatorsDef = detect.Definition{
	Name:        "network_suspicious_endpoints",
	Description: "Contacts dynamic-DNS hostnames or raw IP addresses over HTTP",
	Severity:    2,
	Categories:  []string{"network"},
	TTPs:        []string{"T1071"},
}

// networkIndicators sweeps the resolved domains and requested URLs after
// the stream ends and records every suspicious endpoint as an IOC.
type networkIndicators struct {
	*detect.Base
}

func (s *networkIndicators) Definition() detect.Definition { return networkIndicatorsDef }

func (s *networkIndicators) OnComplete() error {
	for _, domain := range s.CheckDomainAll(dynamicDNSPattern, true) {
		s.MarkDetailedIOC("domain", domain, "dns", "dynamic DNS hostname")
	}
	for _, url := range s.CheckURLAll(directIPURLPattern, true) {
		s.MarkDetailedIOC("url", url, "http", "HTTP request to a raw IP address")
	}
	if s.HasMarks() {
		s.Match()
	}
	return nil
}

func init() {
	detect.Register(networkIndicatorsDef, func(b *detect.Base) detect.Signature {
		return &networkIndicators{Base: b}
	})
}
