package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/schnitzel/netidentity"
	"github.com/schnitzel/netidentity/internal/logging"
	"github.com/spf13/cobra"
)

type resolveOptions struct {
	remoteAddr        string
	headers           []string
	principal         string
	clientCertSubject string
	path              string

	preset        string
	trustProxies  []string
	reverseDNS    bool
	lookupTimeout time.Duration
	debug         bool

	selfPublicIP     string
	selfPrivateIP    string
	selfComputerName string
	selfUsername     string
}

func newResolveCmd() *cobra.Command {
	var o resolveOptions

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve one request offline and print the merged record as JSON",
		Example: `  netidentityd resolve --remote-addr 10.0.0.5:443 \
    --header "X-Forwarded-For: 203.0.113.7, 10.0.0.5" \
    --header "X-Forwarded-User: CORP\\jdoe" \
    --self-computer-name LAPTOP-7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.remoteAddr, "remote-addr", "", "transport peer address, host:port or bare IP")
	f.StringArrayVar(&o.headers, "header", nil, `request header as "Name: value" (repeatable)`)
	f.StringVar(&o.principal, "principal", "", "principal authenticated by the application")
	f.StringVar(&o.clientCertSubject, "client-cert-subject", "", "subject of a verified TLS client certificate")
	f.StringVar(&o.path, "path", "/", "request path, used in logs only")
	f.StringVar(&o.preset, "preset", "default", "deployment preset: default, direct, loopback, vm, cloudflare")
	f.StringSliceVar(&o.trustProxies, "trust-proxy", nil, "CIDR of a trusted upstream proxy (repeatable)")
	f.BoolVar(&o.reverseDNS, "reverse-dns", false, "perform a reverse DNS lookup for the resolved address")
	f.DurationVar(&o.lookupTimeout, "lookup-timeout", netidentity.DefaultLookupTimeout, "reverse DNS timeout")
	f.BoolVar(&o.debug, "debug", false, "write a debug report to stderr")
	f.StringVar(&o.selfPublicIP, "self-public-ip", "", "client-reported public IP")
	f.StringVar(&o.selfPrivateIP, "self-private-ip", "", "client-reported private IP")
	f.StringVar(&o.selfComputerName, "self-computer-name", "", "client-reported computer name")
	f.StringVar(&o.selfUsername, "self-username", "", "client-reported username")

	return cmd
}

func runResolve(cmd *cobra.Command, o resolveOptions) error {
	headers, err := parseHeaders(o.headers)
	if err != nil {
		return err
	}

	preset, ok := netidentity.PresetByName(o.preset)
	if !ok {
		return fmt.Errorf("unknown preset %q", o.preset)
	}

	prefixes, err := netidentity.ParseCIDRs(o.trustProxies...)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{Level: "info", Format: "console"}, cmd.ErrOrStderr())
	adapter := logging.NewAdapter(logger)

	opts := []netidentity.Option{
		preset,
		netidentity.WithReverseDNS(o.reverseDNS),
		netidentity.WithLogger(adapter),
	}
	if o.reverseDNS {
		opts = append(opts, netidentity.WithLookupTimeout(o.lookupTimeout))
	}
	if len(prefixes) > 0 {
		opts = append(opts, netidentity.TrustProxyPrefixes(prefixes...))
	}

	resolver, err := netidentity.New(opts...)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	in := netidentity.RequestInput{
		Context:           ctx,
		RemoteAddr:        o.remoteAddr,
		Path:              o.path,
		Headers:           headers,
		Principal:         o.principal,
		ClientCertSubject: o.clientCertSubject,
	}
	report := netidentity.NewSelfReport(o.selfPublicIP, o.selfPrivateIP, o.selfComputerName, o.selfUsername)

	var merged netidentity.MergedIdentity
	if o.debug {
		id := resolver.Resolve(in)
		merged = resolver.MergeIdentity(id, report)
		netidentity.NewDebugReporter(adapter).Report(ctx, resolver.DebugReport(in, id).WithMerged(merged))
	} else {
		merged = resolver.Merge(in, report)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(merged.Map())
}

// parseHeaders turns repeated "Name: value" flags into a header set. Repeated
// names become separate header lines, in flag order.
func parseHeaders(raw []string) (http.Header, error) {
	headers := make(http.Header, len(raw))
	for _, line := range raw {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("invalid header %q: want \"Name: value\"", line)
		}
		headers.Add(name, strings.TrimSpace(value))
	}
	return headers, nil
}
