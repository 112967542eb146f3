package netidentity

import "net/netip"

// proxyMatcher answers "is this peer a trusted proxy" in time proportional
// to the address width, independent of how many prefixes are configured.
//
// IPv4 prefixes are stored in the IPv4-mapped IPv6 space so a single binary
// trie covers both families.
type proxyMatcher struct {
	root *trieNode
}

type trieNode struct {
	next     [2]*trieNode
	terminal bool
}

// ipv4MappedBits is the length of the ::ffff:0:0/96 prefix.
const ipv4MappedBits = 96

func buildProxyMatcher(prefixes []netip.Prefix) proxyMatcher {
	if len(prefixes) == 0 {
		return proxyMatcher{}
	}

	m := proxyMatcher{root: &trieNode{}}
	for _, prefix := range prefixes {
		if !prefix.IsValid() {
			continue
		}

		addr := prefix.Addr()
		bits := prefix.Bits()
		if addr.Is4() {
			bits += ipv4MappedBits
		}

		m.insert(addr.As16(), bits)
	}

	return m
}

func (m proxyMatcher) enabled() bool {
	return m.root != nil
}

func (m proxyMatcher) insert(addr [16]byte, bits int) {
	node := m.root
	for i := 0; i < bits; i++ {
		b := bitAt(addr, i)
		if node.next[b] == nil {
			node.next[b] = &trieNode{}
		}
		node = node.next[b]
	}
	node.terminal = true
}

func (m proxyMatcher) contains(ip netip.Addr) bool {
	if m.root == nil || !ip.IsValid() {
		return false
	}

	addr := ip.Unmap().WithZone("").As16()
	node := m.root
	for i := 0; i < 128; i++ {
		if node.terminal {
			return true
		}
		node = node.next[bitAt(addr, i)]
		if node == nil {
			return false
		}
	}

	return node.terminal
}

func bitAt(addr [16]byte, i int) int {
	return int(addr[i/8]>>(7-uint(i%8))) & 1
}
