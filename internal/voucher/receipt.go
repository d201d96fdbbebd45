package voucher

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

// receiptPrefix is printed on every redemption receipt.
const receiptPrefix = "COMP"

// GenerateReceiptCode returns a code of the form COMP-YYYYMMDD-####.
//
// The 4-digit suffix is random; codes are practically unique per day but
// carry no global uniqueness guarantee.
func GenerateReceiptCode(now time.Time) (string, error) {
	var buf [4]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return "", fmt.Errorf("generate receipt code: %w", err)
	}
	suffix := binary.BigEndian.Uint32(buf[:]) % 10000
	return fmt.Sprintf("%s-%s-%04d", receiptPrefix, now.UTC().Format("20060102"), suffix), nil
}
