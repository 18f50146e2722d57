package twofactor

import (
	"crypto/subtle"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const codeDigits = 6

// wellFormedCode reports whether code is exactly six ASCII digits.
func wellFormedCode(code string) bool {
	if len(code) != codeDigits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func (c *Coordinator) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    c.cfg.Period,
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// matchStep checks code against the steps around now and returns the
// matching time-step counter. Every candidate is compared.
func (c *Coordinator) matchStep(secret string, code string, now time.Time) (uint64, bool) {
	if !wellFormedCode(code) {
		return 0, false
	}

	opts := c.validateOpts()
	period := time.Duration(c.cfg.Period) * time.Second
	skew := int(c.cfg.Skew)

	var (
		matched uint64
		found   bool
	)
	for i := -skew; i <= skew; i++ {
		at := now.Add(time.Duration(i) * period)
		want, err := totp.GenerateCodeCustom(secret, at, opts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 && !found {
			matched = uint64(at.Unix()) / uint64(c.cfg.Period)
			found = true
		}
	}
	return matched, found
}

func (c *Coordinator) generateKey(accountName string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      c.cfg.Issuer,
		AccountName: accountName,
		Period:      c.cfg.Period,
		SecretSize:  20,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
