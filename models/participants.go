package models

import "time"

// Consultant is the read-only view of a consultant profile that booking relies on.
type Consultant struct {
	ID                string    `bson:"id" json:"id"`
	Username          string    `bson:"username" json:"username"`
	Specializations   []string  `bson:"specialization" json:"specialization"`
	YearsOfExperience int       `bson:"yearsOfExperience" json:"yearsOfExperience"`
	FCMToken          string    `bson:"fcmToken,omitempty" json:"-"`
	IsActive          bool      `bson:"isActive" json:"isActive"`
	UpdatedAt         time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (c Consultant) SupportsSpecialization(s string) bool {
	return contains(c.Specializations, s)
}

// Client is the read-only view of a client profile that booking relies on.
type Client struct {
	ID                string    `bson:"id" json:"id"`
	Username          string    `bson:"username" json:"username"`
	ConsultationCount int       `bson:"consultationCount" json:"consultationCount"`
	FCMToken          string    `bson:"fcmToken,omitempty" json:"-"`
	UpdatedAt         time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Role identifies who performs an action on a consultation.
type Role string

const (
	RoleClient     Role = "client"
	RoleConsultant Role = "consultant"
	RoleAdmin      Role = "admin"
	RoleSystem     Role = "system"
)

// Actor is the principal recorded against every status change.
type Actor struct {
	ID   string `bson:"id" json:"id"`
	Role Role   `bson:"role" json:"role"`
}

// SystemActor is used for transitions driven by payment callbacks and background retries.
var SystemActor = Actor{ID: "system", Role: RoleSystem}
