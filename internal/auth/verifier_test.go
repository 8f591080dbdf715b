package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func hs256Token(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(header + "." + payload))
	return header + "." + payload + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyDevToken(t *testing.T) {
	v := New("dev", "", "")
	p, err := v.Verify("acme:Admin")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.Tenant != "acme" || p.Role != "admin" {
		t.Fatalf("principal wrong: %+v", p)
	}
	if _, err := v.Verify("no-colon"); err == nil {
		t.Fatalf("malformed dev token should fail")
	}
	if _, err := v.Verify(":role"); err == nil {
		t.Fatalf("empty tenant should fail")
	}
}

func TestVerifyHMAC(t *testing.T) {
	v := New("hmac", "topsecret", "")

	tok := hs256Token(t, "topsecret", map[string]any{"tenant": "acme", "role": "Dispatcher", "sub": "u1"})
	p, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.Tenant != "acme" || p.Role != "dispatcher" || p.Subject != "u1" {
		t.Fatalf("principal wrong: %+v", p)
	}

	if _, err := v.Verify(hs256Token(t, "wrongsecret", map[string]any{"tenant": "acme"})); err == nil {
		t.Fatalf("bad signature should fail")
	}
	if _, err := v.Verify("a.b"); err == nil {
		t.Fatalf("two-segment token should fail")
	}
	if _, err := v.Verify(hs256Token(t, "topsecret", map[string]any{"role": "admin"})); err == nil {
		t.Fatalf("missing tenant claim should fail")
	}
}

func TestVerifyHMACDefaultsRole(t *testing.T) {
	v := New("hmac", "topsecret", "")
	p, err := v.Verify(hs256Token(t, "topsecret", map[string]any{"tenant": "acme"}))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.Role != "user" {
		t.Fatalf("role should default to user, got %q", p.Role)
	}
}

func TestVerifyHMACExpired(t *testing.T) {
	v := New("hmac", "topsecret", "")
	tok := hs256Token(t, "topsecret", map[string]any{"tenant": "acme", "exp": time.Now().Add(-time.Minute).Unix()})
	if _, err := v.Verify(tok); err == nil {
		t.Fatalf("expired token should fail")
	}
}

func TestVerifyJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		doc := map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}}}
		_ = json.NewEncoder(w).Encode(doc)
	}))
	defer srv.Close()

	hdr := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","kid":"k1"}`))
	body, _ := json.Marshal(map[string]any{"tenant": "acme", "role": "admin"})
	payload := base64.RawURLEncoding.EncodeToString(body)
	sum := sha256.Sum256([]byte(hdr + "." + payload))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, sum[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tok := fmt.Sprintf("%s.%s.%s", hdr, payload, base64.RawURLEncoding.EncodeToString(sig))

	v := New("jwks", "", srv.URL)
	p, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.Tenant != "acme" || p.Role != "admin" {
		t.Fatalf("principal wrong: %+v", p)
	}

	// unknown kid is rejected
	hdr2 := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","kid":"nope"}`))
	tok2 := fmt.Sprintf("%s.%s.%s", hdr2, payload, base64.RawURLEncoding.EncodeToString(sig))
	if _, err := v.Verify(tok2); err == nil {
		t.Fatalf("unknown kid should fail")
	}
}
