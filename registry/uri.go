package registry

import (
	"strings"

	"github.com/chimeradev/regaccess/deverr"
)

// ParsedURI is a device alias's resolved connection description, either
// from the sdm:// wire format or a legacy filesystem-path heuristic.
//
// sdm:// grammar: "sdm://<host>/<interface>:<instance>;<protocol>" or,
// with `=`-separated parameters instead of an instance/protocol suffix,
// "sdm://<host>/<interface>=<p1>,<p2>,...".
type ParsedURI struct {
	Scheme     string // "sdm" or "legacy"
	Host       string
	Interface  string // selects the backend.Factory constructor
	Instance   string
	Protocol   string
	Parameters []string
}

// ParseURI parses raw as an sdm:// URI, falling back to the legacy
// filesystem-path heuristic ("/dev/tty*" and "/dev/cu.*" select the serial
// backend; any other "/dev/<name>" selects the pcie backend; a
// ".map"/".mapp" suffix selects the dummy backend). Parse failures are
// always a LogicError.
func ParseURI(raw string) (ParsedURI, error) {
	if strings.HasPrefix(raw, "sdm://") {
		return parseSDM(raw)
	}
	return parseLegacy(raw)
}

func parseLegacy(raw string) (ParsedURI, error) {
	switch {
	case strings.HasPrefix(raw, "/dev/tty") || strings.HasPrefix(raw, "/dev/cu."):
		return ParsedURI{Scheme: "legacy", Interface: "serial"}, nil
	case strings.HasPrefix(raw, "/dev/"):
		return ParsedURI{Scheme: "legacy", Interface: "pcie"}, nil
	case strings.HasSuffix(raw, ".map") || strings.HasSuffix(raw, ".mapp"):
		return ParsedURI{Scheme: "legacy", Interface: "dummy"}, nil
	default:
		return ParsedURI{}, deverr.NewLogic("registry: cannot parse device uri %q", raw)
	}
}

func parseSDM(raw string) (ParsedURI, error) {
	rest := strings.TrimPrefix(raw, "sdm://")
	slash := strings.IndexByte(rest, '/')
	if slash == -1 {
		return ParsedURI{}, deverr.NewLogic("registry: sdm uri %q is missing the host/interface separator", raw)
	}
	result := ParsedURI{Scheme: "sdm", Host: rest[:slash]}
	tail := rest[slash+1:]
	if tail == "" {
		return ParsedURI{}, deverr.NewLogic("registry: sdm uri %q is missing an interface", raw)
	}

	if eq := strings.IndexByte(tail, '='); eq != -1 {
		result.Interface = tail[:eq]
		for _, p := range strings.Split(tail[eq+1:], ",") {
			result.Parameters = append(result.Parameters, p)
		}
	} else {
		iface := tail
		if semi := strings.IndexByte(tail, ';'); semi != -1 {
			iface = tail[:semi]
			result.Protocol = tail[semi+1:]
		}
		if colon := strings.IndexByte(iface, ':'); colon != -1 {
			result.Interface = iface[:colon]
			result.Instance = iface[colon+1:]
		} else {
			result.Interface = iface
		}
	}

	if result.Interface == "" {
		return ParsedURI{}, deverr.NewLogic("registry: sdm uri %q is missing an interface", raw)
	}
	return result, nil
}
