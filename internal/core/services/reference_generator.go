package services

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProofOfAddressPrefix starts every proof-of-address reference number
const ProofOfAddressPrefix = "POA"

// verificationCodeBytes is how much of the digest survives into the code.
// 10 bytes encode to exactly 16 base32 characters.
const verificationCodeBytes = 10

var codeEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ReferenceGenerator mints reference numbers and verification codes
type ReferenceGenerator struct {
	prefix string
	now    func() time.Time
}

// NewReferenceGenerator creates a generator for proof-of-address documents
func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{
		prefix: ProofOfAddressPrefix,
		now:    time.Now,
	}
}

// GenerateReferenceNumber returns PREFIX-YYYYMMDD-XXXXXXXXXXXX where the
// suffix is 48 random bits from a v4 UUID. Uniqueness is finally enforced
// by the unique index on documents.reference_number.
func (g *ReferenceGenerator) GenerateReferenceNumber() string {
	id := uuid.New()
	// bytes 10..15 carry no version or variant bits
	suffix := strings.ToUpper(hex.EncodeToString(id[10:]))
	return g.prefix + "-" + g.now().UTC().Format("20060102") + "-" + suffix
}

// GenerateVerificationCode derives the code printed on a document from the
// subject identifier, its location and the reference number. Anyone holding
// the three values can recompute it.
func (g *ReferenceGenerator) GenerateVerificationCode(subject, location, reference string) string {
	h := sha256.New()
	var size [4]byte
	for _, part := range []string{subject, location, reference} {
		binary.BigEndian.PutUint32(size[:], uint32(len(part)))
		h.Write(size[:])
		h.Write([]byte(part))
	}
	sum := h.Sum(nil)

	raw := codeEncoding.EncodeToString(sum[:verificationCodeBytes])
	groups := make([]string, 0, len(raw)/4)
	for i := 0; i < len(raw); i += 4 {
		groups = append(groups, raw[i:i+4])
	}
	return strings.Join(groups, "-")
}

// NormalizeVerificationCode upper-cases a presented code and drops
// whitespace so "abcd efgh-..." compares equal to the printed form
func NormalizeVerificationCode(code string) string {
	code = strings.ToUpper(strings.Join(strings.Fields(code), ""))
	if !strings.Contains(code, "-") && len(code) == 16 {
		return code[0:4] + "-" + code[4:8] + "-" + code[8:12] + "-" + code[12:16]
	}
	return code
}
