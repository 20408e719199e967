package services

import (
	"fmt"
	"strings"
	"time"

	googleuuid "github.com/google/uuid"
)

// newReference builds a human-quotable unique reference such as
// DIV-20260901-3F92A1C4 or PAY-20260901-8B02D719. The random component comes
// from a v4 UUID; uniqueness is ultimately enforced by the database's unique
// indexes.
func newReference(prefix string) string {
	random := strings.ToUpper(strings.ReplaceAll(googleuuid.NewString(), "-", ""))
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().Format("20060102"), random[:8])
}
