package browser

import "strings"

// MaskProxyCredentials replaces any userinfo in a proxy address with
// "****:****". Addresses with and without a scheme are handled; the host and
// port are kept.
func MaskProxyCredentials(proxy string) string {
	scheme, rest := "", proxy
	if i := strings.Index(proxy, "://"); i >= 0 {
		scheme, rest = proxy[:i+3], proxy[i+3:]
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return proxy
	}
	return scheme + "****:****@" + rest[at+1:]
}
