// Package naming derives the external identifiers of pool accounts and their slots.
//
// Account n (1-based) with capacity C covers the global slot range
// [(n-1)*C+1, n*C]. Its email is "{start}a{end}@{domain}" and slot k of the
// account is named after the global running index start+k-1.
package naming

import (
	"strconv"
	"strings"
)

// Scheme holds the configuration needed to derive names. The zero value is not usable.
type Scheme struct {
	Capacity       int
	Domain         string
	UsernamePrefix string
}

// NewScheme builds a naming scheme. The domain is stored without a leading "@".
func NewScheme(capacity int, domain, usernamePrefix string) Scheme {
	return Scheme{
		Capacity:       capacity,
		Domain:         strings.TrimPrefix(strings.TrimSpace(domain), "@"),
		UsernamePrefix: usernamePrefix,
	}
}

// Range returns the first and last global slot index covered by account n.
func (s Scheme) Range(n int64) (start, end int64) {
	c := int64(s.Capacity)
	return (n-1)*c + 1, n * c
}

// Email returns the email of the account with sequence index n.
func (s Scheme) Email(n int64) string {
	start, end := s.Range(n)
	var b strings.Builder
	b.WriteString(strconv.FormatInt(start, 10))
	b.WriteByte('a')
	b.WriteString(strconv.FormatInt(end, 10))
	b.WriteByte('@')
	b.WriteString(s.Domain)
	return b.String()
}

// GlobalIndex returns the running index of slot k inside the account starting at rangeStart.
func GlobalIndex(rangeStart int64, slotNumber int) int64 {
	return rangeStart + int64(slotNumber) - 1
}

// Username returns the username of slot k of the account starting at rangeStart.
func (s Scheme) Username(rangeStart int64, slotNumber int) string {
	return s.UsernamePrefix + strconv.FormatInt(GlobalIndex(rangeStart, slotNumber), 10)
}

// SlotUsername is a shortcut for Username(Range(n).start, k).
func (s Scheme) SlotUsername(n int64, slotNumber int) string {
	start, _ := s.Range(n)
	return s.Username(start, slotNumber)
}
