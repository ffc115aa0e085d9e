package rpc

import "github.com/dmitrijs2005/famledger/internal/models"

type RegisterRequest struct {
	UserName string `json:"user_name"`
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"verifier"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type GetSaltRequest struct {
	UserName string `json:"user_name"`
}

type GetSaltResponse struct {
	Salt []byte `json:"salt"`
}

type LoginRequest struct {
	UserName string `json:"user_name"`
	Verifier []byte `json:"verifier"`
}

type TokenResponse struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type CreateHouseholdRequest struct {
	Name string `json:"name"`
}

type HouseholdResponse struct {
	Household models.Household `json:"household"`
}

type ListHouseholdsRequest struct{}

type ListHouseholdsResponse struct {
	Households []models.Household `json:"households"`
}

type AddMemberRequest struct {
	HouseholdID string `json:"household_id"`
	UserName    string `json:"user_name"`
	Role        string `json:"role"`
}

type MemberResponse struct {
	Member models.Member `json:"member"`
}

type ListMembersRequest struct {
	HouseholdID string `json:"household_id"`
}

type ListMembersResponse struct {
	Members []models.Member `json:"members"`
}

type RecordRef struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

type VersionResponse struct {
	Version int64 `json:"version"`
}

type RecordResponse struct {
	Record models.RemoteRecord `json:"record"`
}

type PullRequest struct {
	HouseholdID string `json:"household_id"`
	Since       int64  `json:"since"`
	Limit       int    `json:"limit,omitempty"`
}

type PullResponse struct {
	Changes []models.RemoteChange `json:"changes"`
	Latest  int64                 `json:"latest"`
}

type PresignReceiptRequest struct {
	HouseholdID string `json:"household_id"`
	RecordID    string `json:"record_id"`
	ContentType string `json:"content_type"`
}

type PresignReceiptResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type ReceiptURLRequest struct {
	HouseholdID string `json:"household_id"`
	Key         string `json:"key"`
}

type ReceiptURLResponse struct {
	URL string `json:"url"`
}
