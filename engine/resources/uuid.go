package resources

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

/**
 * @brief A 128-bit stable resource identifier, stored as four 32-bit words.
 * The zero value is the "empty" UUID and never identifies a resource.
 */
type UUID struct {
	words [4]uint32
}

// GenerateUUID returns a fresh random (v4) UUID.
func GenerateUUID() UUID {
	return uuidFromBytes(uuid.New())
}

// ParseUUID accepts only the canonical 36-character lowercase hex form with
// hyphens at positions 8, 13, 18 and 23. Anything else yields the empty
// UUID; callers check Valid().
func ParseUUID(s string) UUID {
	if len(s) != 36 {
		return UUID{}
	}
	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return UUID{}
			}
		default:
			if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
				return UUID{}
			}
		}
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return UUID{}
	}
	return uuidFromBytes(u)
}

func uuidFromBytes(u uuid.UUID) UUID {
	var out UUID
	for i := 0; i < 4; i++ {
		out.words[i] = binary.BigEndian.Uint32(u[i*4 : i*4+4])
	}
	return out
}

func (u UUID) Valid() bool {
	return u != UUID{}
}

func (u UUID) Equal(other UUID) bool {
	return u == other
}

// Hash derives from the first word only.
func (u UUID) Hash() uint32 {
	return u.words[0]
}

func (u UUID) String() string {
	var b [16]byte
	for i := 0; i < 4; i++ {
		binary.BigEndian.PutUint32(b[i*4:i*4+4], u.words[i])
	}
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
