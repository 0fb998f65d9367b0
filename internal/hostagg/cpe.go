package hostagg

import (
	"fmt"
	"regexp"
	"strings"
)

// bannerPattern is a regex signature for deriving a product/version pair
// from a raw service banner string.
type bannerPattern struct {
	regex   *regexp.Regexp
	vendor  string
	product string
}

// bannerPatterns is the signature table used by parseBanner, adapted from
// the teacher's service-fingerprinting banner table.
var bannerPatterns = []bannerPattern{
	{regexp.MustCompile(`SSH-[\d.]+-OpenSSH[_-]([\d.p]+)`), "openbsd", "openssh"},
	{regexp.MustCompile(`nginx/([\d.]+)`), "nginx", "nginx"},
	{regexp.MustCompile(`Apache/([\d.]+)`), "apache", "http_server"},
	{regexp.MustCompile(`Microsoft-IIS/([\d.]+)`), "microsoft", "iis"},
	{regexp.MustCompile(`lighttpd/([\d.]+)`), "lighttpd", "lighttpd"},
	{regexp.MustCompile(`MySQL/([\d.]+)`), "mysql", "mysql"},
	{regexp.MustCompile(`PostgreSQL\s+([\d.]+)`), "postgresql", "postgresql"},
	{regexp.MustCompile(`MariaDB-([\d.]+)`), "mariadb", "mariadb"},
	{regexp.MustCompile(`MongoDB\s+([\d.]+)`), "mongodb", "mongodb"},
	{regexp.MustCompile(`Redis\s+server\s+v=([\d.]+)`), "redis", "redis"},
	{regexp.MustCompile(`Tomcat/([\d.]+)`), "apache", "tomcat"},
	{regexp.MustCompile(`ProFTPD\s+([\d.]+)`), "proftpd", "proftpd"},
	{regexp.MustCompile(`vsftpd\s+([\d.]+)`), "vsftpd_project", "vsftpd"},
	{regexp.MustCompile(`BIND\s+([\d.]+)`), "isc", "bind"},
	{regexp.MustCompile(`Postfix\s+([\d.]+)`), "postfix", "postfix"},
	{regexp.MustCompile(`Exim\s+([\d.]+)`), "exim", "exim"},
	{regexp.MustCompile(`squid/([\d.]+)`), "squid-cache", "squid"},
}

// productVendorMap supplies a vendor when a product name is already known
// but no banner was parsed.
var productVendorMap = map[string]string{
	"nginx": "nginx", "apache": "apache", "openssh": "openbsd",
	"mysql": "mysql", "postgresql": "postgresql", "mariadb": "mariadb",
	"mongodb": "mongodb", "redis": "redis", "tomcat": "apache",
	"iis": "microsoft", "bind": "isc", "postfix": "postfix",
}

// parseBanner extracts a (product, version, vendor) triple from a raw
// service banner, or three empty strings if no pattern matches.
func parseBanner(banner string) (product, version, vendor string) {
	if banner == "" {
		return "", "", ""
	}
	for _, p := range bannerPatterns {
		if m := p.regex.FindStringSubmatch(banner); len(m) >= 2 {
			return p.product, m[1], p.vendor
		}
	}
	return "", "", ""
}

// deriveCPE builds a best-effort CPE 2.3 string for a service from
// whatever of (name, version, banner) is available, preferring an
// explicit name/version pair over banner parsing.
func deriveCPE(name, version, banner string) string {
	if name != "" && version != "" {
		return formatCPE23(normalizeVendor(name), name, version)
	}
	if banner != "" {
		if product, ver, vendor := parseBanner(banner); product != "" {
			return formatCPE23(vendor, product, ver)
		}
	}
	if name != "" {
		return formatCPE23(normalizeVendor(name), name, "*")
	}
	return ""
}

func normalizeVendor(product string) string {
	normalized := strings.ToLower(strings.TrimSpace(product))
	if vendor, ok := productVendorMap[normalized]; ok {
		return vendor
	}
	return normalized
}

var cpeIllegalChars = regexp.MustCompile(`[^a-z0-9._\-]`)

func formatCPE23(vendor, product, version string) string {
	return fmt.Sprintf("cpe:2.3:a:%s:%s:%s:*:*:*:*:*:*:*",
		normalizeCPEComponent(vendor), normalizeCPEComponent(product), normalizeCPEComponent(version))
}

func normalizeCPEComponent(s string) string {
	if s == "" || s == "*" {
		return "*"
	}
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "_")
	return cpeIllegalChars.ReplaceAllString(s, "")
}
