package resources

import (
	"bytes"
	"fmt"
	"maps"

	"github.com/shopspring/decimal"

	abhash "github.com/alphabill-org/alphabill-exchange/hash"
	"github.com/alphabill-org/alphabill-exchange/predicates/templates"
	"github.com/alphabill-org/alphabill-exchange/types"
)

var _ types.UnitData = (*ResourceData)(nil)
var _ types.UnitData = (*VaultData)(nil)

// Role is the action on a resource guarded by an access rule.
type Role uint8

const (
	RoleMint Role = iota
	RoleBurn
	RoleWithdraw
	RoleDeposit
	RoleRecall
)

func (r Role) String() string {
	switch r {
	case RoleMint:
		return "minter"
	case RoleBurn:
		return "burner"
	case RoleWithdraw:
		return "withdrawer"
	case RoleDeposit:
		return "depositor"
	case RoleRecall:
		return "recaller"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

type RoleRule struct {
	_       struct{}             `cbor:",toarray"`
	Rule    types.PredicateBytes `json:"rule"`    // who may perform the action
	Updater types.PredicateBytes `json:"updater"` // who may change the Rule
}

type Roles struct {
	_        struct{} `cbor:",toarray"`
	Mint     RoleRule `json:"mint"`
	Burn     RoleRule `json:"burn"`
	Withdraw RoleRule `json:"withdraw"`
	Deposit  RoleRule `json:"deposit"`
	Recall   RoleRule `json:"recall"`
}

/*
DefaultRoles returns the roles of a resource which can't be minted, burned or
recalled while anybody may withdraw and deposit it. None of the rules can
be updated.
*/
func DefaultRoles() Roles {
	deny := templates.AlwaysFalseBytes()
	allow := templates.AlwaysTrueBytes()
	return Roles{
		Mint:     RoleRule{Rule: deny, Updater: deny},
		Burn:     RoleRule{Rule: deny, Updater: deny},
		Withdraw: RoleRule{Rule: allow, Updater: deny},
		Deposit:  RoleRule{Rule: allow, Updater: deny},
		Recall:   RoleRule{Rule: deny, Updater: deny},
	}
}

// Get returns pointer to the rule of the role or nil for unknown role.
func (r *Roles) Get(role Role) *RoleRule {
	switch role {
	case RoleMint:
		return &r.Mint
	case RoleBurn:
		return &r.Burn
	case RoleWithdraw:
		return &r.Withdraw
	case RoleDeposit:
		return &r.Deposit
	case RoleRecall:
		return &r.Recall
	default:
		return nil
	}
}

func (rr RoleRule) Copy() RoleRule {
	return RoleRule{Rule: bytes.Clone(rr.Rule), Updater: bytes.Clone(rr.Updater)}
}

func (r Roles) Copy() Roles {
	return Roles{
		Mint:     r.Mint.Copy(),
		Burn:     r.Burn.Copy(),
		Withdraw: r.Withdraw.Copy(),
		Deposit:  r.Deposit.Copy(),
		Recall:   r.Recall.Copy(),
	}
}

// ResourceData is the state of the resource manager of a fungible asset type.
type ResourceData struct {
	_            struct{}          `cbor:",toarray"`
	Metadata     map[string]string `json:"metadata"`     // name, symbol, description, icon_url...; locked at creation
	Divisibility uint8             `json:"divisibility"` // number of decimal places a quantity may have
	TotalSupply  decimal.Decimal   `json:"totalSupply"`  // minted minus burned
	Roles        Roles             `json:"roles"`
}

// VaultData is the state of a vault, vault holds a quantity of exactly one resource.
type VaultData struct {
	_        struct{}               `cbor:",toarray"`
	Resource types.ResourceAddress  `json:"resource"`
	Amount   decimal.Decimal        `json:"amount"`
	OwnerID  types.ComponentAddress `json:"owner"` // the component owning the vault exclusively
}

func NewResourceData(spec *ResourceSpec) *ResourceData {
	return &ResourceData{
		Metadata:     maps.Clone(spec.Metadata),
		Divisibility: spec.Divisibility,
		TotalSupply:  decimal.Zero,
		Roles:        spec.Roles.Copy(),
	}
}

func NewVaultData(resource types.ResourceAddress, owner types.ComponentAddress) *VaultData {
	return &VaultData{
		Resource: resource,
		Amount:   decimal.Zero,
		OwnerID:  owner,
	}
}

func (r *ResourceData) Write(hasher abhash.Hasher) {
	hasher.Write(r.Metadata)
	hasher.Write(r.Divisibility)
	hasher.WriteAmount(r.TotalSupply)
	hasher.Write(r.Roles)
}

func (r *ResourceData) Copy() types.UnitData {
	if r == nil {
		return nil
	}
	return &ResourceData{
		Metadata:     maps.Clone(r.Metadata),
		Divisibility: r.Divisibility,
		TotalSupply:  r.TotalSupply,
		Roles:        r.Roles.Copy(),
	}
}

func (r *ResourceData) Owner() []byte {
	return nil
}

func (v *VaultData) Write(hasher abhash.Hasher) {
	hasher.Write(v.Resource)
	hasher.WriteAmount(v.Amount)
	hasher.Write(v.OwnerID)
}

func (v *VaultData) Copy() types.UnitData {
	if v == nil {
		return nil
	}
	return &VaultData{
		Resource: bytes.Clone(v.Resource),
		Amount:   v.Amount,
		OwnerID:  bytes.Clone(v.OwnerID),
	}
}

func (v *VaultData) Owner() []byte {
	return v.OwnerID
}
