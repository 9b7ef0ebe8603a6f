package models

import "time"

type Address struct {
	Line1 string `json:"line1" bson:"line1"`
	Line2 string `json:"line2,omitempty" bson:"line2,omitempty"`
}

type User struct {
	ID        string    `json:"_id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Password  string    `json:"-" bson:"password"`
	Image     string    `json:"image,omitempty" bson:"image,omitempty"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Address   Address   `json:"address" bson:"address"`
	Gender    string    `json:"gender,omitempty" bson:"gender,omitempty"`
	Dob       string    `json:"dob,omitempty" bson:"dob,omitempty"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// UserSnapshot is the denormalized copy of a user embedded in an
// appointment at booking time. It is never re-hydrated from the live
// user record.
type UserSnapshot struct {
	ID     string `json:"_id" bson:"_id"`
	Name   string `json:"name" bson:"name"`
	Email  string `json:"email" bson:"email"`
	Image  string `json:"image,omitempty" bson:"image,omitempty"`
	Phone  string `json:"phone,omitempty" bson:"phone,omitempty"`
	Gender string `json:"gender,omitempty" bson:"gender,omitempty"`
	Dob    string `json:"dob,omitempty" bson:"dob,omitempty"`
}

func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Image:  u.Image,
		Phone:  u.Phone,
		Gender: u.Gender,
		Dob:    u.Dob,
	}
}
