// Package auth validates API credentials and extracts tenant/role claims.
package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Verifier checks tokens in one of three modes: dev (unsigned tenant:role
// tokens), hmac (HS256 JWTs) and jwks (RS256 JWTs against a JWKS endpoint).
type Verifier struct {
	Mode        string
	HMACSecret  []byte
	JWKSURL     string
	TenantClaim string
	RoleClaim   string

	http      *http.Client
	mu        sync.RWMutex
	keys      keySet
	lastFetch time.Time
	cacheTTL  time.Duration
}

type keySet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
	Alg string `json:"alg"`
}

// Principal is the authenticated caller.
type Principal struct {
	Tenant  string
	Role    string
	Subject string
}

func New(mode, hmacSecret, jwksURL string) *Verifier {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{
		Mode:        mode,
		HMACSecret:  []byte(hmacSecret),
		JWKSURL:     jwksURL,
		TenantClaim: "tenant",
		RoleClaim:   "role",
		http:        &http.Client{Timeout: 5 * time.Second},
		cacheTTL:    10 * time.Minute,
	}
}

// Verify parses and checks a token, returning the caller principal.
func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		// token format: tenant:role
		parts := strings.Split(token, ":")
		if len(parts) >= 2 && parts[0] != "" {
			return Principal{Tenant: parts[0], Role: strings.ToLower(parts[1])}, nil
		}
		return Principal{}, errors.New("invalid dev token; expected tenant:role")
	}
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, errors.New("invalid JWT")
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return Principal{}, err
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return Principal{}, err
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return Principal{}, err
	}
	var hdr struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Principal{}, err
	}
	var claims map[string]any
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, err
	}
	signingInput := []byte(segs[0] + "." + segs[1])
	switch v.Mode {
	case "hmac":
		if hdr.Alg != "HS256" {
			return Principal{}, errors.New("unsupported alg for hmac")
		}
		mac := hmac.New(sha256.New, v.HMACSecret)
		mac.Write(signingInput)
		if !hmac.Equal(mac.Sum(nil), sig) {
			return Principal{}, errors.New("bad signature")
		}
	case "jwks":
		if hdr.Alg != "RS256" {
			return Principal{}, errors.New("unsupported alg for jwks")
		}
		pub, err := v.rsaKey(hdr.Kid)
		if err != nil {
			return Principal{}, err
		}
		h := sha256.Sum256(signingInput)
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], sig); err != nil {
			return Principal{}, errors.New("bad signature")
		}
	default:
		return Principal{}, errors.New("unsupported auth mode")
	}
	if exp, ok := claims["exp"].(float64); ok && time.Now().Unix() > int64(exp) {
		return Principal{}, errors.New("token expired")
	}
	tenant, _ := claims[v.TenantClaim].(string)
	role, _ := claims[v.RoleClaim].(string)
	subject, _ := claims["sub"].(string)
	if tenant == "" {
		return Principal{}, errors.New("missing tenant claim")
	}
	if role == "" {
		role = "user"
	}
	return Principal{Tenant: tenant, Role: strings.ToLower(role), Subject: subject}, nil
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

func (v *Verifier) rsaKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	cached := v.keys
	stale := time.Since(v.lastFetch) > v.cacheTTL
	v.mu.RUnlock()
	if len(cached.Keys) == 0 || stale {
		if err := v.fetchJWKS(); err != nil {
			return nil, err
		}
		v.mu.RLock()
		cached = v.keys
		v.mu.RUnlock()
	}
	for _, k := range cached.Keys {
		if k.Kid != kid || !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		nBytes, err := b64urlDecode(k.N)
		if err != nil {
			return nil, err
		}
		eBytes, err := b64urlDecode(k.E)
		if err != nil {
			return nil, err
		}
		// exponent is big-endian, typically 0x010001
		e := 0
		for _, b := range eBytes {
			e = e<<8 | int(b)
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
	}
	return nil, errors.New("kid not found in JWKS")
}

func (v *Verifier) fetchJWKS() error {
	if v.JWKSURL == "" {
		return errors.New("jwks url not configured")
	}
	req, _ := http.NewRequest(http.MethodGet, v.JWKSURL, nil)
	resp, err := v.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	var ks keySet
	if err := json.NewDecoder(resp.Body).Decode(&ks); err != nil {
		return err
	}
	v.mu.Lock()
	v.keys = ks
	v.lastFetch = time.Now()
	v.mu.Unlock()
	return nil
}
