package core

import "fmt"

// assertIs fails with Unauthorized unless id is want. It backs every
// "caller must be X" rule in the engine.
func assertIs(id, want Identity, role string) error {
	if id != want {
		return newError(CodeUnauthorized, fmt.Sprintf("%s is not the %s", id, role))
	}
	return nil
}

// assertIsNot fails with Unauthorized when id equals forbidden. A nil
// forbidden identity never matches.
func assertIsNot(id Identity, forbidden *Identity, role string) error {
	if forbidden != nil && id == *forbidden {
		return newError(CodeUnauthorized, fmt.Sprintf("%s is the %s", id, role))
	}
	return nil
}

func identityPtr(id Identity) *Identity {
	return &id
}
