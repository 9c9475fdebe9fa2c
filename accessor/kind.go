package accessor

// Kind tags every node in the accessor composition DAG with what role it
// plays, replacing the deep decorator/virtual-dispatch hierarchy of the
// original implementation with a flat enum the group and abstractors can
// switch on.
type Kind int

const (
	// KindBackendLeaf is a hardware-accessing element: its transfer talks
	// directly to a backend.Backend.
	KindBackendLeaf Kind = iota
	// KindCopyDecorator materializes a computed view; the group must drive
	// its preRead/postRead explicitly and it is never a replacement target.
	KindCopyDecorator
	// KindNumericCast wraps an inner element of one user type and exposes
	// it as another.
	KindNumericCast
)

func (k Kind) String() string {
	switch k {
	case KindBackendLeaf:
		return "backend_leaf"
	case KindCopyDecorator:
		return "copy_decorator"
	case KindNumericCast:
		return "numeric_cast"
	default:
		return "unknown"
	}
}
