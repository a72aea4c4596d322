package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultInvoicePrefix starts every invoice number unless configured otherwise.
const DefaultInvoicePrefix = "INV"

// NewInvoiceNumber returns PREFIX-YYYYMMDD-XXXXXX where the suffix is random.
func NewInvoiceNumber(prefix string, at time.Time) string {
	if prefix == "" {
		prefix = DefaultInvoicePrefix
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("%s-%s-%s", prefix, at.UTC().Format("20060102"), suffix)
}
