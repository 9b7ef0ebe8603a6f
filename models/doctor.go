package models

import "time"

// SlotLedger maps a calendar date ("2006-01-02") to the times of day
// ("15:04") already booked for that doctor on that date. A time appears
// at most once per date; mutation happens only through conditional
// updates at the storage layer.
type SlotLedger map[string][]string

// Has reports whether the given time is booked on the given date.
func (l SlotLedger) Has(date, slot string) bool {
	for _, t := range l[date] {
		if t == slot {
			return true
		}
	}
	return false
}

type Doctor struct {
	ID          string     `json:"_id" bson:"_id"`
	Name        string     `json:"name" bson:"name"`
	Email       string     `json:"email" bson:"email"`
	Password    string     `json:"-" bson:"password"`
	Image       string     `json:"image" bson:"image"`
	Speciality  string     `json:"speciality" bson:"speciality"`
	Degree      string     `json:"degree" bson:"degree"`
	Experience  string     `json:"experience" bson:"experience"`
	About       string     `json:"about" bson:"about"`
	Available   bool       `json:"available" bson:"available"`
	Fee         int        `json:"fees" bson:"fees"`
	Address     Address    `json:"address" bson:"address"`
	SlotsBooked SlotLedger `json:"slots_booked" bson:"slots_booked"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
}

// Public returns the doctor with credential fields cleared, for
// directory listings. The slot ledger stays visible so clients can
// render taken slots.
func (d Doctor) Public() Doctor {
	d.Password = ""
	d.Email = ""
	return d
}

// DoctorSnapshot is the denormalized copy of a doctor embedded in an
// appointment at booking time.
type DoctorSnapshot struct {
	ID         string  `json:"_id" bson:"_id"`
	Name       string  `json:"name" bson:"name"`
	Speciality string  `json:"speciality" bson:"speciality"`
	Degree     string  `json:"degree" bson:"degree"`
	Image      string  `json:"image" bson:"image"`
	Fee        int     `json:"fees" bson:"fees"`
	Address    Address `json:"address" bson:"address"`
}

func (d *Doctor) Snapshot() DoctorSnapshot {
	return DoctorSnapshot{
		ID:         d.ID,
		Name:       d.Name,
		Speciality: d.Speciality,
		Degree:     d.Degree,
		Image:      d.Image,
		Fee:        d.Fee,
		Address:    d.Address,
	}
}
