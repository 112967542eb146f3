package netidentity

// PresetDirectConnection configures resolution for direct client-to-app
// traffic. No proxy headers are consulted for the client address.
func PresetDirectConnection() Option {
	return WithIPHeaders()
}

// PresetLoopbackReverseProxy configures resolution for apps behind a reverse
// proxy on the same host (for example NGINX on localhost). Address headers
// are honored only for loopback peers.
func PresetLoopbackReverseProxy() Option {
	return TrustLoopbackProxy()
}

// PresetVMReverseProxy configures resolution for apps behind a reverse proxy
// in a typical VM or private-network setup. Address headers are honored only
// for loopback and private-range peers.
func PresetVMReverseProxy() Option {
	return func(c *config) error {
		return applyOptions(c,
			TrustLoopbackProxy(),
			TrustPrivateProxyRanges(),
		)
	}
}

// PresetCloudflare prefers CF-Connecting-IP, then X-Forwarded-For, then the
// transport address.
func PresetCloudflare() Option {
	return WithIPHeaders("CF-Connecting-IP", "X-Forwarded-For")
}

// PresetByName resolves a preset by its configuration name: "default",
// "direct", "loopback", "vm" or "cloudflare". The second result is false for
// unknown names.
func PresetByName(name string) (Option, bool) {
	switch name {
	case "", "default":
		return nil, true
	case "direct":
		return PresetDirectConnection(), true
	case "loopback":
		return PresetLoopbackReverseProxy(), true
	case "vm":
		return PresetVMReverseProxy(), true
	case "cloudflare":
		return PresetCloudflare(), true
	default:
		return nil, false
	}
}
