package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	LoginNameLength     = 10
	LoginPasswordLength = 15

	// credentialAlphabet leaves out characters that are easy to misread: 0 O o 1 l I.
	credentialAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz"
)

// GenerateCredentials returns a fresh login name and password drawn from a
// cryptographically secure source.
func GenerateCredentials() (loginName, loginPassword string, err error) {
	loginName, err = gonanoid.Generate(credentialAlphabet, LoginNameLength)
	if err != nil {
		return "", "", err
	}
	loginPassword, err = gonanoid.Generate(credentialAlphabet, LoginPasswordLength)
	if err != nil {
		return "", "", err
	}
	return loginName, loginPassword, nil
}
