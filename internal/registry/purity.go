package registry

// Purity sources recorded in ir.OperationContract.PureSource.
const (
	PureDeclared = "declared"
	PureInferred = "inferred"
)

// IsPure reports whether op, called on typ, is classified read-only.
//
// A pure declaration on op or on the same operation of any ancestor is
// authoritative. Otherwise the statically inferred purity of typ's own
// implementation applies. Constructors and operations nobody declares are
// impure.
func (r *Registry) IsPure(typ, op string) bool {
	oc, err := r.Operation(typ, op)
	if err != nil {
		return false
	}
	return oc.Pure
}
