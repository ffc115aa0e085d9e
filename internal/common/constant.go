package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Entity types the core knows about. The payload of each is opaque.
const (
	EntityExpense  = "expense"
	EntityBudget   = "budget"
	EntityEvent    = "event"
	EntityCategory = "category"
)

// ValidEntityType reports whether t is one of the known entity types.
func ValidEntityType(t string) bool {
	switch t {
	case EntityExpense, EntityBudget, EntityEvent, EntityCategory:
		return true
	}
	return false
}
