package auth

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/binary"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// CodeGenerator produces the numeric codes mailed for email verification.
type CodeGenerator interface {
	NewCode() (string, error)
}

// OTPGenerator derives six digit codes from a fresh random HOTP secret and
// counter, so consecutive codes are unrelated.
type OTPGenerator struct {
	Digits otp.Digits
}

func NewOTPGenerator() *OTPGenerator {
	return &OTPGenerator{Digits: otp.DigitsSix}
}

func (g *OTPGenerator) NewCode() (string, error) {
	var buf [28]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	secret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf[:20])
	counter := binary.BigEndian.Uint64(buf[20:])

	digits := g.Digits
	if digits == 0 {
		digits = otp.DigitsSix
	}
	return hotp.GenerateCodeCustom(secret, counter, hotp.ValidateOpts{
		Digits:    digits,
		Algorithm: otp.AlgorithmSHA1,
	})
}
