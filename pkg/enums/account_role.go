package enums

import "slices"

// AccountRole is the explicit account-kind discriminant carried alongside an identity.
type AccountRole string

const (
	AccountRoleMerchant AccountRole = "merchant"
	AccountRoleRider    AccountRole = "rider"
	AccountRoleOperator AccountRole = "operator"
)

var validAccountRoles = []AccountRole{
	AccountRoleMerchant,
	AccountRoleRider,
	AccountRoleOperator,
}

func (r AccountRole) String() string {
	return string(r)
}

func (r AccountRole) IsValid() bool {
	return slices.Contains(validAccountRoles, r)
}

func ParseAccountRole(value string) (AccountRole, error) {
	return parseOneOf("account role", value, validAccountRoles)
}
