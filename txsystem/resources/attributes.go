package resources

const (
	MetadataName        = "name"
	MetadataSymbol      = "symbol"
	MetadataDescription = "description"
	MetadataIconURL     = "icon_url"

	// DivisibilityNone is used for badges and other "whole unit only" resources.
	DivisibilityNone uint8 = 0
	// DivisibilityMax is the default divisibility of a fungible resource.
	DivisibilityMax uint8 = 18
)

// ResourceSpec describes a new fungible resource.
type ResourceSpec struct {
	Metadata     map[string]string
	Divisibility uint8
	Roles        Roles
}

/*
NewFungible returns spec of a resource with given divisibility and metadata
and the DefaultRoles, caller may override the roles before creating the
resource.
*/
func NewFungible(divisibility uint8, metadata map[string]string) *ResourceSpec {
	return &ResourceSpec{
		Metadata:     metadata,
		Divisibility: divisibility,
		Roles:        DefaultRoles(),
	}
}

// NewBadge returns spec of an indivisible resource which can't be minted after creation.
func NewBadge(name string) *ResourceSpec {
	return NewFungible(DivisibilityNone, map[string]string{MetadataName: name})
}
