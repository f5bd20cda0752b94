package mapper

import "regexp"

// amazonGTIPattern matches an Amazon GTI embedded in an aiv deeplink, e.g.
// "aiv://aiv/detail?gti=amzn1.dv.gti.XXXX".
var amazonGTIPattern = regexp.MustCompile(`amzn1\.dv\.gti\.[A-Za-z0-9_-]+`)

// ExtractAmazonGTI returns the first Amazon GTI found in any of the given
// playable URLs, or "" if none is present.
func ExtractAmazonGTI(urls ...string) string {
	for _, u := range urls {
		if m := amazonGTIPattern.FindString(u); m != "" {
			return m
		}
	}
	return ""
}

// ResolveAmazonSubService remaps a generic "aiv" logical service to a
// specific aiv sub-service (aiv_peacock, aiv_max, aiv_dazn, aiv_fanduel,
// aiv_prime, ...) by looking the embedded GTI up in the Amazon channel
// table. lookup is the catalog's persisted gti -> logical_service map.
// Returns logicalService unchanged when no GTI is found or the GTI has no
// entry in lookup.
func ResolveAmazonSubService(logicalService string, lookup map[string]string, urls ...string) string {
	gti := ExtractAmazonGTI(urls...)
	if gti == "" {
		return logicalService
	}
	if remapped, ok := lookup[gti]; ok && remapped != "" {
		return remapped
	}
	return logicalService
}
