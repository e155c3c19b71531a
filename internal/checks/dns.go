package checks

import (
	"context"
	"errors"
	"net"

	"github.com/talonscan/talon/internal/model"
)

// DNSResult holds the resolver findings for a target host.
type DNSResult struct {
	Addresses []string `json:"addresses" bson:"addresses"`
	MXHosts   []string `json:"mx_hosts,omitempty" bson:"mx_hosts,omitempty"`
	HasSPF    bool     `json:"has_spf" bson:"has_spf"`
}

// checkDNS resolves the target host. A host that does not resolve at all is
// a non-retryable target problem; MX and TXT lookups are best-effort.
func checkDNS(ctx context.Context, target Target) (any, error) {
	resolver := net.DefaultResolver

	addrs, err := resolver.LookupHost(ctx, target.Host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, model.NewCheckError(model.CodeInvalidTarget, "host does not resolve", false)
		}
		return nil, err
	}

	result := DNSResult{Addresses: addrs}

	if mxs, err := resolver.LookupMX(ctx, target.Host); err == nil {
		for _, mx := range mxs {
			result.MXHosts = append(result.MXHosts, mx.Host)
		}
	}

	if txts, err := resolver.LookupTXT(ctx, target.Host); err == nil {
		for _, txt := range txts {
			if len(txt) >= 6 && txt[:6] == "v=spf1" {
				result.HasSPF = true
				break
			}
		}
	}

	return result, nil
}
