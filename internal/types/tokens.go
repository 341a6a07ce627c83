package types

import "time"

// TokenRecord is the persisted credential shape. ExpiresAt is absolute
// epoch milliseconds UTC; refresh tokens are optional because the server
// does not always rotate them.
type TokenRecord struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// TokenPair is the result of a login or refresh exchange before it has
// been anchored to wall-clock time. ExpiresIn is a relative offset in
// seconds as reported by the token endpoint.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// Record converts the pair to a persistable record, resolving the
// relative expiry against now.
func (p TokenPair) Record(now time.Time) TokenRecord {
	return TokenRecord{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(p.ExpiresIn) * time.Second).UnixMilli(),
	}
}

// Expiry returns the record's expiry as a time.Time.
func (r TokenRecord) Expiry() time.Time {
	return time.UnixMilli(r.ExpiresAt)
}

// ValidFor reports whether the record is valid for at least margin
// beyond now.
func (r TokenRecord) ValidFor(now time.Time, margin time.Duration) bool {
	return r.Expiry().After(now.Add(margin))
}
