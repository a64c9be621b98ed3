package session

import (
	"crypto/sha256"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

// PasetoIssuer issues PASETO v4.local tokens.
// The symmetric key is SHA-256 of the configured secret.
type PasetoIssuer struct {
	issuer    string
	clockSkew time.Duration
	key       paseto.V4SymmetricKey
}

// NewPasetoIssuer builds a v4.local issuer from cfg.Secret.
func NewPasetoIssuer(cfg Config) (*PasetoIssuer, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, ErrConfig
	}
	sum := sha256.Sum256([]byte(cfg.Secret))
	key, err := paseto.V4SymmetricKeyFromBytes(sum[:])
	if err != nil {
		return nil, ErrConfig
	}
	return &PasetoIssuer{
		issuer:    cfg.Issuer,
		clockSkew: cfg.ClockSkew,
		key:       key,
	}, nil
}

// Issue encrypts a token for userID valid for ttl from now.
func (p *PasetoIssuer) Issue(purpose Purpose, userID, email string, ttl time.Duration, now time.Time) (string, Claims, error) {
	c, err := newClaims(purpose, userID, email, ttl, now)
	if err != nil {
		return "", Claims{}, err
	}

	tok := paseto.NewToken()
	tok.SetIssuer(p.issuer)
	tok.SetSubject(c.UserID)
	tok.SetJti(c.TokenID)
	tok.SetIssuedAt(c.IssuedAt)
	tok.SetNotBefore(c.IssuedAt)
	tok.SetExpiration(c.ExpiresAt)
	tok.SetString("email", c.Email)
	tok.SetString("pur", string(c.Purpose))

	return tok.V4Encrypt(p.key, nil), c, nil
}

// Verify decrypts the token and checks issuer and time claims at now.
func (p *PasetoIssuer) Verify(token string, now time.Time) (Claims, error) {
	if token == "" || len(token) > 4096 {
		return Claims{}, ErrInvalidToken
	}

	// Validate slightly in the future so nbf/iat survive small clock differences.
	// exp is rechecked against now below. A fresh parser per call keeps rules from
	// accumulating.
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.IssuedBy(p.issuer))
	parser.AddRule(paseto.ValidAt(now.Add(p.clockSkew)))

	parsed, err := parser.ParseV4Local(p.key, token, nil)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	sub, err := parsed.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, ErrInvalidToken
	}
	exp, err := parsed.GetExpiration()
	if err != nil || !now.Before(exp) {
		return Claims{}, ErrInvalidToken
	}
	iat, _ := parsed.GetIssuedAt()
	jti, _ := parsed.GetJti()
	email, _ := parsed.GetString("email")
	pur, _ := parsed.GetString("pur")

	return Claims{
		UserID:    sub,
		Email:     email,
		Purpose:   Purpose(pur),
		TokenID:   jti,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}, nil
}
