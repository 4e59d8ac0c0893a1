package probe

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/watchpost/watchpost/internal/domain"
)

// Minimum key sizes below which a key is flagged weak.
const (
	minRSABits = 2048
	minECBits  = 256
)

// Security score penalties, floored at 0.
const (
	penaltyWeakKey    = 30
	penaltyWeakSig    = 40
	penaltyUnknownKey = 20
)

// letsEncryptMarkers is a crude substring heuristic over issuer CN/O. "r3"
// and "e1" are Let's Encrypt intermediate names but can false-positive on
// unrelated issuers; acceptable because the flag only feeds a renewal hint,
// never a hard alert gate.
var letsEncryptMarkers = []string{"let's encrypt", "r3", "e1"}

func analyzeKeyAndSignature(c *x509.Certificate) *domain.SecurityAnalysis {
	a := &domain.SecurityAnalysis{Score: 100}

	switch k := c.PublicKey.(type) {
	case *rsa.PublicKey:
		a.KeyAlgorithm = "RSA"
		a.KeySizeBits = k.N.BitLen()
		a.WeakKey = a.KeySizeBits < minRSABits
	case *ecdsa.PublicKey:
		a.KeyAlgorithm = "ECDSA"
		a.KeySizeBits = k.Curve.Params().BitSize
		a.WeakKey = a.KeySizeBits < minECBits
	case ed25519.PublicKey:
		a.KeyAlgorithm = "Ed25519"
		a.KeySizeBits = 256
	}

	a.WeakSignature = weakSignature(c.SignatureAlgorithm)

	if a.WeakKey {
		a.Score -= penaltyWeakKey
	}
	if a.WeakSignature {
		a.Score -= penaltyWeakSig
	}
	if a.KeyAlgorithm == "" {
		a.Score -= penaltyUnknownKey
	}
	if a.Score < 0 {
		a.Score = 0
	}
	return a
}

// weakSignature reports whether the signature digest is MD5 or SHA-1.
func weakSignature(alg x509.SignatureAlgorithm) bool {
	switch alg {
	case x509.MD2WithRSA, x509.MD5WithRSA,
		x509.SHA1WithRSA, x509.DSAWithSHA1, x509.ECDSAWithSHA1:
		return true
	}
	return false
}

func detectLetsEncrypt(c *x509.Certificate) bool {
	fields := append([]string{c.Issuer.CommonName}, c.Issuer.Organization...)
	for _, f := range fields {
		lf := strings.ToLower(f)
		for _, m := range letsEncryptMarkers {
			if strings.Contains(lf, m) {
				return true
			}
		}
	}
	return false
}

func isWildcard(cn string) bool {
	return strings.HasPrefix(cn, "*.")
}

// coversDomain reports whether host is named by the CN or any DNS SAN,
// including wildcard entries: *.example.com covers example.com and any
// single-level name under it.
func coversDomain(host string, c *x509.Certificate) bool {
	host = strings.ToLower(host)
	names := append([]string{c.Subject.CommonName}, c.DNSNames...)
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if n == host {
			return true
		}
		if suffix, ok := strings.CutPrefix(n, "*."); ok {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
		}
	}
	return false
}

// assessRisk turns the analytic fields into a level, a 0..100 score, and
// deduplicated issue/recommendation lists. Level escalates monotonically;
// expiry state outranks weak keys, weak keys outrank weak signatures.
func assessRisk(obs domain.CertificateObservation) *domain.RiskAssessment {
	r := &domain.RiskAssessment{Level: domain.RiskLow}

	add := func(level domain.RiskLevel, points int, issue, rec string) {
		if riskRank(level) > riskRank(r.Level) {
			r.Level = level
		}
		r.Score += points
		r.Issues = appendUnique(r.Issues, issue)
		r.Recommendations = appendUnique(r.Recommendations, rec)
	}

	switch obs.Status {
	case domain.CertExpired:
		add(domain.RiskCritical, 40,
			fmt.Sprintf("certificate expired %d days ago", -obs.DaysUntilExpiry),
			"Renew the certificate immediately")
	case domain.CertExpiringSoon:
		add(domain.RiskHigh, 25,
			fmt.Sprintf("certificate expires in %d days", obs.DaysUntilExpiry),
			"Schedule certificate renewal")
	case domain.CertInvalid:
		add(domain.RiskHigh, 25,
			fmt.Sprintf("certificate does not cover %s or is not yet valid", obs.Host),
			"Reissue the certificate with correct domain coverage")
	}

	if sec := obs.Security; sec != nil {
		if sec.WeakKey {
			add(domain.RiskHigh, 20,
				fmt.Sprintf("weak public key (%s %d bits)", sec.KeyAlgorithm, sec.KeySizeBits),
				"Reissue with RSA >= 2048 or EC >= 256 bits")
		}
		if sec.WeakSignature {
			add(domain.RiskMedium, 20,
				fmt.Sprintf("weak signature algorithm (%s)", obs.SignatureAlgorithm),
				"Reissue with a SHA-256 or stronger signature")
		}
		if sec.Score < 50 {
			add(domain.RiskMedium, 15,
				fmt.Sprintf("low security score (%d/100)", sec.Score),
				"Review key and signature configuration")
		}
	}

	if r.Score > 100 {
		r.Score = 100
	}
	return r
}

func riskRank(l domain.RiskLevel) int {
	switch l {
	case domain.RiskCritical:
		return 3
	case domain.RiskHigh:
		return 2
	case domain.RiskMedium:
		return 1
	}
	return 0
}

func appendUnique(xs []string, s string) []string {
	for _, x := range xs {
		if x == s {
			return xs
		}
	}
	return append(xs, s)
}

func issuerName(c *x509.Certificate) string {
	if c.Issuer.CommonName != "" {
		return c.Issuer.CommonName
	}
	if len(c.Issuer.Organization) > 0 {
		return c.Issuer.Organization[0]
	}
	return c.Issuer.String()
}
