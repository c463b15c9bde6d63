package store

import (
	"crypto/rand"
	"errors"
	"math/big"
	"time"
)

// timeLayout is fixed width so lexical comparison in SQL matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const publicIDAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// PublicIDLength is the length of generated video, subtitle, and thumbnail ids.
const PublicIDLength = 12

// NewPublicID returns a random alphanumeric identifier.
func NewPublicID() string {
	buf := make([]byte, PublicIDLength)
	limit := big.NewInt(int64(len(publicIDAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic("store: crypto/rand unavailable: " + err.Error())
		}
		buf[i] = publicIDAlphabet[n.Int64()]
	}
	return string(buf)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func parseOptionalTime(value string, valid bool) *time.Time {
	if !valid {
		return nil
	}
	t, err := parseTimeString(value)
	if err != nil {
		return nil
	}
	return &t
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
