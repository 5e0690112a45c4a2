package model

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleProvider || r == RoleAdmin
}

type User struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	Phone        string    `json:"phone" bson:"phone"`
	Role         Role      `json:"role" bson:"role"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	ProviderID   *int64    `json:"provider_id,omitempty" bson:"provider_id"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// Provider is a service professional that can be assigned to requests.
type Provider struct {
	ID           int64     `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	Phone        string    `json:"phone" bson:"phone"`
	Rating       float64   `json:"rating" bson:"rating"`
	ServiceAreas []string  `json:"service_areas" bson:"service_areas"`
	Active       bool      `json:"active" bson:"active"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// Snapshot captures the provider's contact details for an interest entry.
func (p *Provider) Snapshot(at time.Time) InterestedProvider {
	return InterestedProvider{
		ProviderID:     p.ID,
		ProviderName:   p.Name,
		ProviderEmail:  p.Email,
		ProviderPhone:  p.Phone,
		ProviderRating: p.Rating,
		AcceptedAt:     at.UTC(),
	}
}
