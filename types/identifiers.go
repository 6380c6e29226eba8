package types

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	UnitIDLength   = UnitPartLength + TypePartLength
	UnitPartLength = 32
	TypePartLength = 1
)

var (
	ResourceUnitType  = []byte{0x10}
	VaultUnitType     = []byte{0x11}
	ComponentUnitType = []byte{0x12}
)

type (
	// UnitID is the extended identifier, combining the unit and the type identifiers.
	UnitID []byte

	// ResourceAddress identifies an asset type (the resource manager unit).
	ResourceAddress UnitID

	// ComponentAddress is the global address of a component.
	ComponentAddress UnitID

	// VaultID identifies a vault, vaults are never addressed globally but
	// only by the component owning them.
	VaultID UnitID
)

// NewUnitID composes unit ID from the unit part and type part.
func NewUnitID(unitPart []byte, typePart []byte) UnitID {
	id := make([]byte, UnitIDLength)
	copy(id[UnitPartLength-min(len(unitPart), UnitPartLength):UnitPartLength], unitPart)
	copy(id[UnitPartLength:], typePart)
	return id
}

func (uid UnitID) Compare(key UnitID) int {
	return bytes.Compare(uid, key)
}

func (uid UnitID) String() string {
	return fmt.Sprintf("%X", []byte(uid))
}

func (uid UnitID) Eq(id UnitID) bool {
	return bytes.Equal(uid, id)
}

// HasType returns true when the type part of the ID equals typePart.
func (uid UnitID) HasType(typePart []byte) bool {
	return len(uid) == UnitIDLength && bytes.Equal(uid[UnitPartLength:], typePart)
}

func (uid UnitID) TypeMustBe(typePart []byte) error {
	if len(uid) != UnitIDLength {
		return fmt.Errorf("expected %d byte unit ID, got %d bytes", UnitIDLength, len(uid))
	}
	if !uid.HasType(typePart) {
		return fmt.Errorf("expected type %#X, got %#X", typePart, []byte(uid[UnitPartLength:]))
	}
	return nil
}

func (uid UnitID) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(uid)), nil
}

func (uid *UnitID) UnmarshalText(src []byte) error {
	res, err := hexutil.Decode(string(src))
	if err == nil {
		*uid = res
	}
	return err
}

func (a ResourceAddress) UnitID() UnitID { return UnitID(a) }

func (a ResourceAddress) Eq(b ResourceAddress) bool { return bytes.Equal(a, b) }

func (a ResourceAddress) String() string { return "resource_" + hexutil.Encode(a)[2:] }

func (a ResourceAddress) MarshalText() ([]byte, error) { return UnitID(a).MarshalText() }

func (a *ResourceAddress) UnmarshalText(src []byte) error {
	return unmarshalTypedID((*UnitID)(a), src, ResourceUnitType)
}

func (a ComponentAddress) UnitID() UnitID { return UnitID(a) }

func (a ComponentAddress) Eq(b ComponentAddress) bool { return bytes.Equal(a, b) }

func (a ComponentAddress) String() string { return "component_" + hexutil.Encode(a)[2:] }

func (a ComponentAddress) MarshalText() ([]byte, error) { return UnitID(a).MarshalText() }

func (a *ComponentAddress) UnmarshalText(src []byte) error {
	return unmarshalTypedID((*UnitID)(a), src, ComponentUnitType)
}

func (v VaultID) UnitID() UnitID { return UnitID(v) }

func (v VaultID) Eq(b VaultID) bool { return bytes.Equal(v, b) }

func (v VaultID) String() string { return "vault_" + hexutil.Encode(v)[2:] }

/*
ParseResourceAddress parses hex encoded (0x prefixed) resource address, the
output of ResourceAddress.String is accepted too.
*/
func ParseResourceAddress(s string) (ResourceAddress, error) {
	var a ResourceAddress
	if err := a.UnmarshalText([]byte(hexFromPrefixed(s, "resource_"))); err != nil {
		return nil, fmt.Errorf("parsing resource address: %w", err)
	}
	return a, nil
}

// ParseComponentAddress parses hex encoded (0x prefixed or "component_") component address.
func ParseComponentAddress(s string) (ComponentAddress, error) {
	var a ComponentAddress
	if err := a.UnmarshalText([]byte(hexFromPrefixed(s, "component_"))); err != nil {
		return nil, fmt.Errorf("parsing component address: %w", err)
	}
	return a, nil
}

func hexFromPrefixed(s, prefix string) string {
	if rest, ok := strings.CutPrefix(s, prefix); ok {
		return "0x" + rest
	}
	return s
}

func unmarshalTypedID(uid *UnitID, src []byte, typePart []byte) error {
	var id UnitID
	if err := id.UnmarshalText(src); err != nil {
		return err
	}
	if err := id.TypeMustBe(typePart); err != nil {
		return err
	}
	*uid = id
	return nil
}
