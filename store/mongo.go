package store

import (
	"context"

	"github.com/careslot/backend/booking"
	"github.com/careslot/backend/models"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// Mongo persists users, doctors and appointments in one database. It
// implements booking.Store; the slot ledger lives embedded in the
// doctor document under slots_booked.
type Mongo struct {
	db     *mongo.Database
	logger *zap.Logger
}

func NewMongo(client *mongo.Client, dbName string, logger *zap.Logger) *Mongo {
	return &Mongo{
		db:     client.Database(dbName),
		logger: logger,
	}
}

func (s *Mongo) users() *mongo.Collection        { return s.db.Collection("users") }
func (s *Mongo) doctors() *mongo.Collection      { return s.db.Collection("doctors") }
func (s *Mongo) appointments() *mongo.Collection { return s.db.Collection("appointments") }

// EnsureIndexes creates the unique and scan indexes the store relies
// on. Safe to call on every startup.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := s.users().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create users email index")
	}

	_, err = s.doctors().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create doctors email index")
	}

	_, err = s.appointments().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "doc_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create appointment indexes")
	}

	return nil
}

func (s *Mongo) UserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.users().FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, booking.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "failed to load user")
	}
	return &user, nil
}

func (s *Mongo) DoctorByID(ctx context.Context, id string) (*models.Doctor, error) {
	var doctor models.Doctor
	err := s.doctors().FindOne(ctx, bson.M{"_id": id}).Decode(&doctor)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, booking.ErrDoctorNotFound
		}
		return nil, errors.Wrap(err, "failed to load doctor")
	}
	return &doctor, nil
}

// ReserveSlot adds the slot to the doctor's ledger with a single
// conditional update: the filter only matches while the doctor is
// available and the slot is absent from the date's array, so of any
// number of concurrent reservations for one (doctor, date, time) at
// most one update matches. The losers re-read the doctor to report why
// they lost.
func (s *Mongo) ReserveSlot(ctx context.Context, doctorID, date, slot string) error {
	field := "slots_booked." + date

	res, err := s.doctors().UpdateOne(ctx,
		bson.M{
			"_id":       doctorID,
			"available": true,
			field:       bson.M{"$ne": slot},
		},
		bson.M{"$push": bson.M{field: slot}},
	)
	if err != nil {
		return errors.Wrap(err, "failed to reserve slot")
	}

	if res.MatchedCount == 1 {
		return nil
	}

	doctor, err := s.DoctorByID(ctx, doctorID)
	if err != nil {
		return err
	}
	if !doctor.Available {
		return booking.ErrDoctorUnavailable
	}
	return booking.ErrSlotTaken
}

func (s *Mongo) ReleaseSlot(ctx context.Context, doctorID, date, slot string) error {
	field := "slots_booked." + date

	// Zero matches means the doctor or the date entry is already gone;
	// release is best-effort.
	_, err := s.doctors().UpdateOne(ctx,
		bson.M{"_id": doctorID},
		bson.M{"$pull": bson.M{field: slot}},
	)
	if err != nil {
		return errors.Wrap(err, "failed to release slot")
	}
	return nil
}

func (s *Mongo) InsertAppointment(ctx context.Context, appt *models.Appointment) error {
	if _, err := s.appointments().InsertOne(ctx, appt); err != nil {
		return errors.Wrap(err, "failed to insert appointment")
	}
	return nil
}

func (s *Mongo) AppointmentByID(ctx context.Context, id string) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.appointments().FindOne(ctx, bson.M{"_id": id}).Decode(&appt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, booking.ErrAppointmentNotFound
		}
		return nil, errors.Wrap(err, "failed to load appointment")
	}
	return &appt, nil
}

func (s *Mongo) setAppointmentField(ctx context.Context, id string, update bson.M) error {
	res, err := s.appointments().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	if err != nil {
		return errors.Wrap(err, "failed to update appointment")
	}
	if res.MatchedCount == 0 {
		return booking.ErrAppointmentNotFound
	}
	return nil
}

// SetCancelled is conditional on cancelled being false so concurrent
// cancellations of one appointment resolve to a single transition; the
// losers learn they lost and must not release the slot.
func (s *Mongo) SetCancelled(ctx context.Context, id string) error {
	res, err := s.appointments().UpdateOne(ctx,
		bson.M{"_id": id, "cancelled": false},
		bson.M{"$set": bson.M{"cancelled": true}})
	if err != nil {
		return errors.Wrap(err, "failed to cancel appointment")
	}
	if res.MatchedCount == 1 {
		return nil
	}

	if _, err := s.AppointmentByID(ctx, id); err != nil {
		return err
	}
	return booking.ErrAlreadyCancelled
}

func (s *Mongo) SetCompleted(ctx context.Context, id string) error {
	return s.setAppointmentField(ctx, id, bson.M{"is_completed": true})
}

func (s *Mongo) SetPaymentSettled(ctx context.Context, id string) error {
	return s.setAppointmentField(ctx, id, bson.M{"payment": true})
}

func (s *Mongo) SetPaymentOrder(ctx context.Context, id string, order models.PaymentOrder) error {
	return s.setAppointmentField(ctx, id, bson.M{"order": order})
}

func (s *Mongo) appointmentScan(ctx context.Context, filter bson.M) ([]models.Appointment, error) {
	cursor, err := s.appointments().Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query appointments")
	}
	defer cursor.Close(ctx)

	var appointments []models.Appointment
	for cursor.Next(ctx) {
		var appt models.Appointment
		if err := cursor.Decode(&appt); err != nil {
			return nil, errors.Wrap(err, "failed to decode appointment")
		}
		appointments = append(appointments, appt)
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrap(err, "appointment cursor failed")
	}

	return appointments, nil
}

func (s *Mongo) AppointmentsByUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	return s.appointmentScan(ctx, bson.M{"user_id": userID})
}

func (s *Mongo) AppointmentsByDoctor(ctx context.Context, doctorID string) ([]models.Appointment, error) {
	return s.appointmentScan(ctx, bson.M{"doc_id": doctorID})
}

func (s *Mongo) AllAppointments(ctx context.Context) ([]models.Appointment, error) {
	return s.appointmentScan(ctx, bson.M{})
}

func (s *Mongo) CountDoctors(ctx context.Context) (int64, error) {
	n, err := s.doctors().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.Wrap(err, "failed to count doctors")
	}
	return n, nil
}

func (s *Mongo) CountUsers(ctx context.Context) (int64, error) {
	n, err := s.users().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, errors.Wrap(err, "failed to count users")
	}
	return n, nil
}
