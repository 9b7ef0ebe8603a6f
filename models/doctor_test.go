package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotLedgerHas(t *testing.T) {
	ledger := SlotLedger{
		"2026-09-10": {"10:00", "10:30"},
	}

	assert.True(t, ledger.Has("2026-09-10", "10:00"))
	assert.False(t, ledger.Has("2026-09-10", "11:00"))
	assert.False(t, ledger.Has("2026-09-11", "10:00"))

	var empty SlotLedger
	assert.False(t, empty.Has("2026-09-10", "10:00"))
}

func TestDoctorPublicStripsSecrets(t *testing.T) {
	d := Doctor{
		ID:       "doc-1",
		Name:     "Dr. Menon",
		Email:    "menon@example.com",
		Password: "bcrypt-hash",
		Fee:      500,
	}

	pub := d.Public()
	assert.Empty(t, pub.Email)
	assert.Empty(t, pub.Password)
	assert.Equal(t, "Dr. Menon", pub.Name)
	assert.Equal(t, 500, pub.Fee)

	// The original is untouched.
	assert.Equal(t, "menon@example.com", d.Email)
}

func TestSnapshots(t *testing.T) {
	d := Doctor{ID: "doc-1", Name: "Dr. Menon", Speciality: "Dermatologist", Fee: 500, Password: "hash"}
	ds := d.Snapshot()
	assert.Equal(t, "doc-1", ds.ID)
	assert.Equal(t, 500, ds.Fee)

	u := User{ID: "user-1", Name: "Asha", Email: "asha@example.com", Password: "hash"}
	us := u.Snapshot()
	assert.Equal(t, "user-1", us.ID)
	assert.Equal(t, "asha@example.com", us.Email)
}
