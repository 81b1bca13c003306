package repository

import (
	"context"
	"database/sql"

	"github.com/skagit-alpine-club/registration-server/internal/model"
)

// RegistrationFormRepo provides access to registration_forms.  One form
// exists per user; submitting again overwrites the previous answers.
type RegistrationFormRepo struct {
	db *sql.DB
}

// NewRegistrationFormRepo returns a RegistrationFormRepo bound to the
// given database.
func NewRegistrationFormRepo(db *sql.DB) *RegistrationFormRepo {
	return &RegistrationFormRepo{db: db}
}

const registrationFormColumns = `user_id, address, address_2, city, state, zip_code,
	phone_1, phone_2, date_of_birth, gender, pronouns,
	emergency_contact_name, emergency_contact_relationship, emergency_contact_phone,
	physical_fitness, medical_conditions, allergies, medications, medical_insurance,
	policy_holder_name, policy_holder_relation, signature, signed_on`

// GetByUser returns the user's form or sql.ErrNoRows.
func (r *RegistrationFormRepo) GetByUser(ctx context.Context, userID uint64) (*model.RegistrationForm, error) {
	var f model.RegistrationForm
	err := r.db.QueryRowContext(ctx,
		`SELECT `+registrationFormColumns+` FROM registration_forms WHERE user_id = ?`, userID).
		Scan(&f.UserID, &f.Address, &f.Address2, &f.City, &f.State, &f.ZipCode,
			&f.Phone1, &f.Phone2, &f.DateOfBirth, &f.Gender, &f.Pronouns,
			&f.EmergencyContactName, &f.EmergencyContactRel, &f.EmergencyContactPhone,
			&f.PhysicalFitness, &f.MedicalConditions, &f.Allergies, &f.Medications, &f.MedicalInsurance,
			&f.PolicyHolderName, &f.PolicyHolderRelation, &f.Signature, &f.SignedOn)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Exists reports whether the user has completed their form.
func (r *RegistrationFormRepo) Exists(ctx context.Context, userID uint64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM registration_forms WHERE user_id = ?)`, userID).Scan(&exists)
	return exists, err
}

// Upsert writes the user's form, replacing any previous submission.
func (r *RegistrationFormRepo) Upsert(ctx context.Context, f *model.RegistrationForm) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO registration_forms (`+registrationFormColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   address = VALUES(address), address_2 = VALUES(address_2), city = VALUES(city),
		   state = VALUES(state), zip_code = VALUES(zip_code),
		   phone_1 = VALUES(phone_1), phone_2 = VALUES(phone_2),
		   date_of_birth = VALUES(date_of_birth), gender = VALUES(gender), pronouns = VALUES(pronouns),
		   emergency_contact_name = VALUES(emergency_contact_name),
		   emergency_contact_relationship = VALUES(emergency_contact_relationship),
		   emergency_contact_phone = VALUES(emergency_contact_phone),
		   physical_fitness = VALUES(physical_fitness), medical_conditions = VALUES(medical_conditions),
		   allergies = VALUES(allergies), medications = VALUES(medications),
		   medical_insurance = VALUES(medical_insurance),
		   policy_holder_name = VALUES(policy_holder_name),
		   policy_holder_relation = VALUES(policy_holder_relation),
		   signature = VALUES(signature), signed_on = VALUES(signed_on)`,
		f.UserID, f.Address, f.Address2, f.City, f.State, f.ZipCode,
		f.Phone1, f.Phone2, f.DateOfBirth, f.Gender, f.Pronouns,
		f.EmergencyContactName, f.EmergencyContactRel, f.EmergencyContactPhone,
		f.PhysicalFitness, f.MedicalConditions, f.Allergies, f.Medications, f.MedicalInsurance,
		f.PolicyHolderName, f.PolicyHolderRelation, f.Signature, f.SignedOn.UTC())
	return err
}
