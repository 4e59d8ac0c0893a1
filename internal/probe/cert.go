package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/watchpost/watchpost/internal/domain"
	"github.com/watchpost/watchpost/internal/status"
)

// CertProber is satisfied by CertificateProbe and by the caching wrapper.
type CertProber interface {
	Probe(ctx context.Context, host string, port int, timeout time.Duration) domain.CertificateObservation
}

// CertificateProbe opens a TLS connection and reports on whatever leaf
// certificate the peer presents. Verification is deliberately disabled: the
// job is to report validity, not enforce it, so a certificate the OS would
// reject is still captured and analyzed.
type CertificateProbe struct {
	WarnThresholdDays int
}

func NewCertificateProbe() *CertificateProbe {
	return &CertificateProbe{WarnThresholdDays: status.DefaultWarnThresholdDays}
}

// Probe never panics past its boundary: connect failures and any parse
// trouble degrade to a status "error" observation with nil analytic fields.
func (p *CertificateProbe) Probe(ctx context.Context, host string, port int, timeout time.Duration) (obs domain.CertificateObservation) {
	obs = domain.CertificateObservation{Host: host, CheckedAt: time.Now().UTC()}
	defer func() {
		if r := recover(); r != nil {
			obs = domain.CertificateObservation{
				Host:         host,
				Status:       domain.CertError,
				ErrorMessage: fmt.Sprintf("certificate analysis failed: %v", r),
				CheckedAt:    obs.CheckedAt,
			}
		}
	}()

	if port == 0 {
		port = domain.DefaultTLSPort
	}
	if timeout <= 0 {
		timeout = domain.DefaultTimeout
	}

	d := &tls.Dialer{Config: &tls.Config{
		ServerName:         host,
		InsecureSkipVerify: true, // capture the presented cert even when a verifier would reject it
	}}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := d.DialContext(cctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		obs.Status = domain.CertError
		obs.ErrorMessage = fmt.Sprintf("tls connect failed: %v", err)
		return obs
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		obs.Status = domain.CertError
		obs.ErrorMessage = "no peer certificate presented"
		return obs
	}

	return p.analyze(obs, host, state.PeerCertificates[0], time.Now().UTC())
}

// analyze fills every analytic field from the leaf certificate. Split out so
// tests can feed synthetic certificates without a handshake.
func (p *CertificateProbe) analyze(obs domain.CertificateObservation, host string, leaf *x509.Certificate, now time.Time) domain.CertificateObservation {
	warn := p.WarnThresholdDays
	if warn <= 0 {
		warn = status.DefaultWarnThresholdDays
	}

	obs.Subject = leaf.Subject.CommonName
	obs.Issuer = issuerName(leaf)
	obs.SerialNumber = fmt.Sprintf("%X", leaf.SerialNumber)
	obs.SignatureAlgorithm = leaf.SignatureAlgorithm.String()
	obs.ValidFrom = leaf.NotBefore
	obs.ValidTo = leaf.NotAfter
	obs.DaysUntilExpiry = status.DaysUntilExpiry(now, leaf.NotAfter)
	obs.SANs = append([]string(nil), leaf.DNSNames...)
	obs.Wildcard = isWildcard(leaf.Subject.CommonName)
	obs.DomainCovered = coversDomain(host, leaf)
	obs.LetsEncrypt = detectLetsEncrypt(leaf)
	obs.Security = analyzeKeyAndSignature(leaf)

	inWindow := !now.Before(leaf.NotBefore) && !now.After(leaf.NotAfter)
	isValid := inWindow && obs.DomainCovered
	obs.Status = status.ClassifyCertificate(now, leaf.NotAfter, isValid, obs.DaysUntilExpiry, warn)
	obs.Risk = assessRisk(obs)
	return obs
}
