package services

import "errors"

// Authentication and provisioning rejections. Each maps to a distinct HTTP
// response so callers can tell "nothing provisioned yet" apart from "wrong
// password" apart from "disabled". Store lookups that miss surface
// store.ErrNotFound unchanged.
var (
	// ErrBadRequest: a required field was missing or empty after
	// normalization. Returned before any store access.
	ErrBadRequest = errors.New("email and password are required")

	// ErrInvalidCredentials covers wrong password, inactive account, and
	// unknown email on a populated store. Deliberately uniform to avoid
	// account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoAccountProvisioned is returned only when no admin account exists
	// anywhere in the store, to point an operator bootstrapping a fresh
	// deployment at the provisioning endpoint.
	ErrNoAccountProvisioned = errors.New("no admin account provisioned")

	// ErrSetupDisabled: provisioning or reset attempted on a production
	// deployment with no setup key configured.
	ErrSetupDisabled = errors.New("admin setup is disabled")

	// ErrSetupKeyInvalid: the presented setup key does not match the
	// configured one.
	ErrSetupKeyInvalid = errors.New("invalid setup key")

	// ErrAlreadyProvisioned: initial provisioning attempted when an admin
	// account already exists.
	ErrAlreadyProvisioned = errors.New("admin account already exists")
)
