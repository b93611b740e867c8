package services

// PropertyRef is the resolved form of a property reference in an API write.
// The wire value 0 historically meant "the reserved no-property placeholder";
// that magic value is translated into an explicit variant at the handler
// boundary and never threaded through business logic.
type PropertyRef struct {
	id   int64
	kind propertyRefKind
}

type propertyRefKind int

const (
	propertyRefNone propertyRefKind = iota
	propertyRefPlaceholder
	propertyRefID
)

// NoProperty is a write that carries no property reference at all.
func NoProperty() PropertyRef {
	return PropertyRef{kind: propertyRefNone}
}

// PlaceholderProperty resolves to the reserved "no property" row.
func PlaceholderProperty() PropertyRef {
	return PropertyRef{kind: propertyRefPlaceholder}
}

// PropertyByID references a concrete stored property.
func PropertyByID(id int64) PropertyRef {
	return PropertyRef{kind: propertyRefID, id: id}
}

// ChildRef is the resolved form of the id-presence upsert convention for
// nested child payloads: an absent or zero id means "create", anything else
// means "update this row". Resolved once at the boundary.
type ChildRef struct {
	id int64
}

// NewChild marks a child payload for creation.
func NewChild() ChildRef {
	return ChildRef{}
}

// ExistingChild marks a child payload as an update of a stored row.
func ExistingChild(id int64) ChildRef {
	return ChildRef{id: id}
}

// IsUpdate reports whether the ref addresses a stored row.
func (r ChildRef) IsUpdate() bool {
	return r.id != 0
}

// ID returns the addressed row id, 0 for creates.
func (r ChildRef) ID() int64 {
	return r.id
}
