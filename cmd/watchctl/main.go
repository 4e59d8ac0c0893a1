// watchctl runs a one-shot uptime and certificate check of a URL and prints
// the observations as JSON. It uses the same probes as the server, so output
// matches what a sweep would record.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/watchpost/watchpost/internal/domain"
	"github.com/watchpost/watchpost/internal/probe"
)

func main() {
	timeout := flag.Duration("timeout", 10*time.Second, "probe timeout")
	skipSSL := flag.Bool("no-ssl", false, "skip the certificate check")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: watchctl [flags] <url>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	raw := flag.Arg(0)
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || u.Hostname() == "" {
		fmt.Fprintf(os.Stderr, "invalid url: %s\n", flag.Arg(0))
		os.Exit(2)
	}

	t := domain.Target{
		Name:        u.Hostname(),
		URL:         raw,
		Timeout:     *timeout,
		CheckUptime: true,
		CheckSSL:    !*skipSSL && u.Scheme == "https",
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout+5*time.Second)
	defer cancel()

	prober := probe.NewBatchProber(probe.NewUptimeProbe(), probe.NewCertificateProbe(), nil)
	var oc probe.Outcome
	for out := range prober.ProbeAll(ctx, []domain.Target{t}, 1) {
		oc = out
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"uptime":      oc.Uptime,
		"certificate": oc.Certificate,
	})

	if oc.Uptime != nil && oc.Uptime.Status != domain.UptimeUp {
		os.Exit(1)
	}
	if oc.Certificate != nil && oc.Certificate.Status != domain.CertValid {
		os.Exit(1)
	}
}
