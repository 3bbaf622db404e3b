// Package keygen derives the synthetic identifiers load tests send to the
// OTP backend: phone numbers, cache keys, tenant ids and check sampling.
//
// Every generator is a pure function of its inputs. Randomness always
// comes from a caller-supplied *rand.Rand so each VU keeps its own source.
package keygen

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
)

// MaxDigits bounds PhoneSpace.Digits so Size fits in an int64.
const MaxDigits = 18

// IterationStride separates per-VU phone ranges in IterationIndex.
const IterationStride = 1_000_000

// PhoneSpace is a finite set of phone numbers: a fixed prefix followed by
// a zero-padded numeric suffix of Digits width.
type PhoneSpace struct {
	Prefix string
	Digits int
}

// DefaultPhoneSpace matches the 0912XXXXXXX numbers used by the OTP scripts.
func DefaultPhoneSpace() PhoneSpace {
	return PhoneSpace{Prefix: "0912", Digits: 7}
}

// Validate checks the suffix width.
func (p PhoneSpace) Validate() error {
	if p.Digits < 1 || p.Digits > MaxDigits {
		return fmt.Errorf("keygen: phone digits must be in [1, %d], got %d", MaxDigits, p.Digits)
	}
	for _, c := range p.Prefix {
		if c < '0' || c > '9' {
			return fmt.Errorf("keygen: phone prefix %q must be numeric", p.Prefix)
		}
	}
	return nil
}

// Size returns the number of distinct phones in the space (10^Digits).
func (p PhoneSpace) Size() int64 {
	size := int64(1)
	for i := 0; i < p.Digits; i++ {
		size *= 10
	}
	return size
}

// FromIndex maps i onto the space. Indexes are taken modulo Size, so the
// result is unique for every i in [0, Size).
func (p PhoneSpace) FromIndex(i int64) string {
	n := i % p.Size()
	if n < 0 {
		n += p.Size()
	}
	return p.Prefix + pad(n, p.Digits)
}

// Random returns a phone drawn uniformly from the space.
func (p PhoneSpace) Random(r *rand.Rand) string {
	return p.FromIndex(r.Int63n(p.Size()))
}

// First returns the phone at index 0.
func (p PhoneSpace) First() string {
	return p.FromIndex(0)
}

func pad(n int64, width int) string {
	s := strconv.FormatInt(n, 10)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// IterationIndex spreads writes across keys per VU: each VU owns a window
// of IterationStride indexes and cycles through it by iteration.
func IterationIndex(vu int, iter int64) int64 {
	return int64(vu)*IterationStride + iter%IterationStride
}

// SeedIndex picks an index uniformly from [0, n). n must be positive.
func SeedIndex(r *rand.Rand, n int) int {
	return r.Intn(n)
}

// OTPKey is the cache key the backend uses for a tenant/phone pair.
func OTPKey(tenant, phone string) string {
	return "otp:" + tenant + ":" + phone
}

// SeedKey is the stable key of the i-th pre-seeded cache entry.
func SeedKey(tenant, phone string, i int) string {
	return OTPKey(tenant, phone) + ":seed:" + strconv.Itoa(i)
}

type otpValue struct {
	TenantID    string `json:"tenant_id"`
	PhoneNumber string `json:"phone_number"`
	OTPCode     string `json:"otp_code"`
}

// OTPValue renders the JSON document stored under an OTP key.
func OTPValue(tenant, phone, code string) string {
	data, err := json.Marshal(otpValue{TenantID: tenant, PhoneNumber: phone, OTPCode: code})
	if err != nil {
		// a struct of strings always marshals
		panic(err)
	}
	return string(data)
}
