package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA‑256 hashing for refresh and reset tokens
    "encoding/hex"  // hex encoding and decoding functions
    "errors"        // sentinel errors and errors.Is
    "time"          // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Verification failures are collapsed into three outcomes.  Expired is safe
// to disclose to a client; the other two must surface as a generic invalid
// token so a caller cannot learn which check rejected it.
var (
    ErrTokenExpired   = errors.New("token expired")
    ErrTokenMalformed = errors.New("token malformed")
    ErrTokenInvalid   = errors.New("token invalid")
)

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.  Access tokens are short‑lived and carried
// in the Authorization header when calling protected endpoints.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// AccessClaims is the decoded content of a verified access token.
type AccessClaims struct {
    AccountID uint64    // subject of the token
    Email     string    // email claim bound at issuance
    IssuedAt  time.Time // iat claim
    ExpiresAt time.Time // exp claim
}

// RefreshToken represents a long‑lived token used to obtain new access tokens.
// The Raw field contains the raw token string returned to the client.  The Exp
// field records when it expires.  In the database only a SHA‑256 hash of the
// raw string is stored.
type RefreshToken struct {
    Raw string    // raw token string returned to the client
    Exp time.Time // UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for an account.  It takes the
// signing secret, the account ID, the account's email, and a TTL in minutes.
// It returns an AccessToken containing the signed token and its expiration
// time.  The JWT carries the claims: subject (sub), email, expiration (exp)
// and issued at (iat).  The TTL is fixed at issuance; there is no sliding
// expiration.
func NewAccessToken(secret string, accountID uint64, email string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":   accountID,
        "email": email,
        "exp":   exp.Unix(),
        "iat":   now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// VerifyAccessToken parses and validates a serialized access token.  On
// success it returns the decoded claims.  Failures map to exactly one of the
// sentinel errors above: structurally broken input is ErrTokenMalformed, an
// elapsed exp claim is ErrTokenExpired, and everything else (bad signature,
// wrong algorithm, missing claims) is ErrTokenInvalid.  The exp check is
// exclusive: a token presented at its expiry instant is already expired.
func VerifyAccessToken(secret, raw string) (AccessClaims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        // Reject any signing method other than HMAC to prevent algorithm
        // confusion with the "none" or RSA methods.
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrTokenInvalid
        }
        return []byte(secret), nil
    }, jwt.WithExpirationRequired())
    if err != nil {
        switch {
        case errors.Is(err, jwt.ErrTokenMalformed):
            return AccessClaims{}, ErrTokenMalformed
        case errors.Is(err, jwt.ErrTokenExpired):
            return AccessClaims{}, ErrTokenExpired
        default:
            return AccessClaims{}, ErrTokenInvalid
        }
    }
    if !tok.Valid {
        return AccessClaims{}, ErrTokenInvalid
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return AccessClaims{}, ErrTokenInvalid
    }
    sub, ok := claims["sub"].(float64)
    if !ok || sub <= 0 {
        return AccessClaims{}, ErrTokenInvalid
    }
    email, _ := claims["email"].(string)
    out := AccessClaims{AccountID: uint64(sub), Email: email}
    if iat, ok := claims["iat"].(float64); ok {
        out.IssuedAt = time.Unix(int64(iat), 0).UTC()
    }
    if exp, ok := claims["exp"].(float64); ok {
        out.ExpiresAt = time.Unix(int64(exp), 0).UTC()
    }
    // The library treats exp as valid up to and including the instant itself;
    // the service defines expiry as exclusive, so re-check here.
    if !time.Now().UTC().Before(out.ExpiresAt) {
        return AccessClaims{}, ErrTokenExpired
    }
    return out, nil
}

// NewRefreshToken returns a cryptographically secure random token (raw) and
// its expiration time.  Refresh tokens live longer than access tokens and
// are used to obtain new access tokens.  The ttlDays parameter controls
// how many days the refresh token is valid.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
    raw, err := randomHex(48) // 48 bytes -> 96 hex chars
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{
        Raw: raw,
        Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
    }, nil
}

// NewResetToken returns a random single-use password-reset token and its
// expiry.  Like refresh tokens, only the hash of the raw value is persisted.
func NewResetToken(ttl time.Duration) (RefreshToken, error) {
    raw, err := randomHex(32)
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{Raw: raw, Exp: time.Now().UTC().Add(ttl)}, nil
}

// HashTokenRaw returns the SHA‑256 hash of a raw opaque token as a hex
// string.  Storing only the hash prevents attackers from using stolen
// database rows to hijack sessions or reset passwords.
func HashTokenRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
