package payment

import (
	"fmt"
	"net/netip"
	"strings"
)

// allowList matches callback source addresses against CIDR ranges.
// An empty list admits every address.
type allowList []netip.Prefix

func newAllowList(cidrs []string) (allowList, error) {
	out := make(allowList, 0, len(cidrs))
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !strings.Contains(c, "/") {
			addr, err := netip.ParseAddr(c)
			if err != nil {
				return nil, fmt.Errorf("allowed ip %q: %w", c, err)
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, fmt.Errorf("allowed range %q: %w", c, err)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

func (a allowList) allows(ip string) bool {
	if len(a) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range a {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
