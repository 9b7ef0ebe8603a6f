package store

import (
	"context"
	"time"

	"github.com/careslot/backend/booking"
	"github.com/careslot/backend/models"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ErrDuplicateEmail is returned when a registration collides with an
// existing user or doctor record.
var ErrDuplicateEmail = errors.New("email already registered")

func (s *Mongo) InsertUser(ctx context.Context, user *models.User) error {
	if _, err := s.users().InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return errors.Wrap(err, "failed to insert user")
	}
	return nil
}

func (s *Mongo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.users().FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, booking.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "failed to load user by email")
	}
	return &user, nil
}

// UserProfileUpdate carries the mutable user profile fields. Nil
// pointers are left untouched.
type UserProfileUpdate struct {
	Name    *string
	Phone   *string
	Address *models.Address
	Gender  *string
	Dob     *string
	Image   *string
}

func (s *Mongo) UpdateUserProfile(ctx context.Context, id string, update UserProfileUpdate) error {
	set := bson.M{"updated_at": time.Now()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}
	if update.Address != nil {
		set["address"] = *update.Address
	}
	if update.Gender != nil {
		set["gender"] = *update.Gender
	}
	if update.Dob != nil {
		set["dob"] = *update.Dob
	}
	if update.Image != nil {
		set["image"] = *update.Image
	}

	res, err := s.users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return errors.Wrap(err, "failed to update user profile")
	}
	if res.MatchedCount == 0 {
		return booking.ErrUserNotFound
	}
	return nil
}

func (s *Mongo) InsertDoctor(ctx context.Context, doctor *models.Doctor) error {
	if _, err := s.doctors().InsertOne(ctx, doctor); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return errors.Wrap(err, "failed to insert doctor")
	}
	return nil
}

func (s *Mongo) DoctorByEmail(ctx context.Context, email string) (*models.Doctor, error) {
	var doctor models.Doctor
	err := s.doctors().FindOne(ctx, bson.M{"email": email}).Decode(&doctor)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, booking.ErrDoctorNotFound
		}
		return nil, errors.Wrap(err, "failed to load doctor by email")
	}
	return &doctor, nil
}

// ListDoctors returns the directory sorted by name. With availableOnly
// set, doctors currently marked unavailable are skipped.
func (s *Mongo) ListDoctors(ctx context.Context, availableOnly bool) ([]models.Doctor, error) {
	filter := bson.M{}
	if availableOnly {
		filter["available"] = true
	}

	cursor, err := s.doctors().Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query doctors")
	}
	defer cursor.Close(ctx)

	var doctors []models.Doctor
	for cursor.Next(ctx) {
		var doctor models.Doctor
		if err := cursor.Decode(&doctor); err != nil {
			return nil, errors.Wrap(err, "failed to decode doctor")
		}
		doctors = append(doctors, doctor)
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrap(err, "doctor cursor failed")
	}

	return doctors, nil
}

func (s *Mongo) SetDoctorAvailability(ctx context.Context, id string, available bool) error {
	res, err := s.doctors().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"available": available}})
	if err != nil {
		return errors.Wrap(err, "failed to set doctor availability")
	}
	if res.MatchedCount == 0 {
		return booking.ErrDoctorNotFound
	}
	return nil
}

// DoctorProfileUpdate carries the mutable doctor profile fields.
type DoctorProfileUpdate struct {
	Fee       *int
	Address   *models.Address
	Available *bool
	About     *string
}

func (s *Mongo) UpdateDoctorProfile(ctx context.Context, id string, update DoctorProfileUpdate) error {
	set := bson.M{}
	if update.Fee != nil {
		set["fees"] = *update.Fee
	}
	if update.Address != nil {
		set["address"] = *update.Address
	}
	if update.Available != nil {
		set["available"] = *update.Available
	}
	if update.About != nil {
		set["about"] = *update.About
	}
	if len(set) == 0 {
		return nil
	}

	res, err := s.doctors().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return errors.Wrap(err, "failed to update doctor profile")
	}
	if res.MatchedCount == 0 {
		return booking.ErrDoctorNotFound
	}
	return nil
}
