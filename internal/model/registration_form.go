package model

import "time"

// RegistrationForm holds the medical and emergency-contact details a
// member must complete before anything can be added to their cart.  One
// form exists per user.
type RegistrationForm struct {
	UserID                  uint64    `json:"user_id"`
	Address                 string    `json:"address"`
	Address2                string    `json:"address_2,omitempty"`
	City                    string    `json:"city"`
	State                   string    `json:"state"`
	ZipCode                 string    `json:"zip_code"`
	Phone1                  string    `json:"phone_1"`
	Phone2                  string    `json:"phone_2,omitempty"`
	DateOfBirth             time.Time `json:"date_of_birth"`
	Gender                  string    `json:"gender"`
	Pronouns                string    `json:"pronouns,omitempty"`
	EmergencyContactName    string    `json:"emergency_contact_name"`
	EmergencyContactRel     string    `json:"emergency_contact_relationship"`
	EmergencyContactPhone   string    `json:"emergency_contact_phone"`
	PhysicalFitness         string    `json:"physical_fitness"`
	MedicalConditions       string    `json:"medical_conditions,omitempty"`
	Allergies               string    `json:"allergies,omitempty"`
	Medications             string    `json:"medications,omitempty"`
	MedicalInsurance        bool      `json:"medical_insurance"`
	PolicyHolderName        string    `json:"policy_holder_name"`
	PolicyHolderRelation    string    `json:"policy_holder_relation"`
	Signature               string    `json:"signature"`
	SignedOn                time.Time `json:"signed_on"`
}

// RosterRow is the flat participant projection consumed by instructor
// rosters and reporting exports.  The field list is part of the export
// contract and must remain stable.
type RosterRow struct {
	UserID                uint64 `json:"user_id"`
	Email                 string `json:"email"`
	Phone1                string `json:"phone_1"`
	Address               string `json:"address"`
	City                  string `json:"city"`
	State                 string `json:"state"`
	ZipCode               string `json:"zip_code"`
	EmergencyContactName  string `json:"emergency_contact_name"`
	EmergencyContactRel   string `json:"emergency_contact_relationship"`
	EmergencyContactPhone string `json:"emergency_contact_phone"`
	PhysicalFitness       string `json:"physical_fitness"`
	MedicalConditions     string `json:"medical_conditions,omitempty"`
	Allergies             string `json:"allergies,omitempty"`
	Medications           string `json:"medications,omitempty"`
	MedicalInsurance      bool   `json:"medical_insurance"`
}
