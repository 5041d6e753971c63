package im

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/doml-verifier/mc/internal/values"
)

// SpecialParser normalizes a composite raw literal from the source
// document into one or more primitive Values, per spec.md §4.2 item 3.
type SpecialParser func(raw string) ([]values.Value, error)

// specialParsers is keyed by "QualifiedClass::localAttribute". Only
// composite attributes need an entry; everything else is coerced by
// declared primitive type in coercePrimitive.
var specialParsers = map[string]SpecialParser{
	"infrastructure_Network::cidr":          parseCIDR,
	"infrastructure_NetworkInterface::endPoint": parseEndpoint,
	"infrastructure_VirtualMachine::memory_mb":   parseMemory,
}

// IsComposite reports whether a special parser rewrites this mangled
// attribute's raw literal into a normalized multi-value form. Consumers
// that reason about an attribute's declared shape (the consistency
// axioms) must not apply the declared primitive type or multiplicity to
// a composite attribute's normalized values.
func IsComposite(mangled string) bool {
	_, ok := specialParsers[mangled]
	return ok
}

// parseCIDR turns "10.0.0.0/24" into [address_lb, address_ub], the
// inclusive integer bounds of the range.
func parseCIDR(raw string) ([]values.Value, error) {
	addr, bitsStr, ok := strings.Cut(raw, "/")
	if !ok {
		return nil, fmt.Errorf("cidr %q: missing prefix length", raw)
	}
	ip, err := ipToUint32(addr)
	if err != nil {
		return nil, fmt.Errorf("cidr %q: %w", raw, err)
	}
	bits, err := strconv.Atoi(bitsStr)
	if err != nil || bits < 0 || bits > 32 {
		return nil, fmt.Errorf("cidr %q: invalid prefix length", raw)
	}
	var mask uint32
	if bits > 0 {
		mask = ^uint32(0) << (32 - bits)
	}
	lb := ip & mask
	ub := lb | ^mask
	return []values.Value{values.Int(int64(lb)), values.Int(int64(ub))}, nil
}

// parseEndpoint turns "10.0.0.1:443" into the integer encoding of the
// address alone (spec.md §4.2: "endpoint addr:port → integer IP").
func parseEndpoint(raw string) ([]values.Value, error) {
	addr := raw
	if idx := strings.LastIndex(raw, ":"); idx >= 0 {
		addr = raw[:idx]
	}
	ip, err := ipToUint32(addr)
	if err != nil {
		return nil, fmt.Errorf("endpoint %q: %w", raw, err)
	}
	return []values.Value{values.Int(int64(ip))}, nil
}

// parseMemory turns a suffixed quantity like "512mb" or "2gb" into
// [mb, kb], the same quantity expressed in both units.
func parseMemory(raw string) ([]values.Value, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	var mult int64
	var numPart string
	switch {
	case strings.HasSuffix(s, "gb"):
		mult, numPart = 1024, strings.TrimSuffix(s, "gb")
	case strings.HasSuffix(s, "mb"):
		mult, numPart = 1, strings.TrimSuffix(s, "mb")
	case strings.HasSuffix(s, "kb"):
		mult, numPart = -1, strings.TrimSuffix(s, "kb") // handled below
	default:
		return nil, fmt.Errorf("memory %q: unrecognized unit", raw)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(numPart), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("memory %q: %w", raw, err)
	}
	var mb int64
	if mult == -1 {
		mb = n / 1024
	} else {
		mb = n * mult
	}
	return []values.Value{values.Int(mb), values.Int(mb * 1024)}, nil
}

func ipToUint32(addr string) (uint32, error) {
	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("invalid IPv4 address %q", addr)
	}
	var out uint32
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return 0, fmt.Errorf("invalid IPv4 octet %q", p)
		}
		out = out<<8 | uint32(n)
	}
	return out, nil
}
